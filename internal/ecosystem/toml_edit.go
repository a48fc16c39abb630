package ecosystem

import (
	"bytes"
	"fmt"
	"regexp"
)

// rewriteTOMLScalar rewrites a single top-level-or-nested string scalar
// in place by line-scanning for the owning table header followed by the
// key, preserving the rest of the file byte-for-byte. Full
// unmarshal-then-marshal round trips through go-toml/v2 reformat comments
// and key ordering, which would turn a one-line version bump into a
// noisy diff across an otherwise untouched manifest; every ecosystem
// TOML adapter (pyproject.toml, Cargo.toml) rewrites this way instead.
func rewriteTOMLScalar(data []byte, path []string, newValue string) ([]byte, error) {
	if len(path) < 2 {
		return nil, fmt.Errorf("rewriteTOMLScalar: path must have at least table + key")
	}
	table := path[:len(path)-1]
	key := path[len(path)-1]

	tableHeader := "[" + joinTOMLPath(table) + "]"
	lines := bytes.Split(data, []byte("\n"))

	inTable := false
	keyRe := regexp.MustCompile(`^(\s*` + regexp.QuoteMeta(key) + `\s*=\s*)"([^"]*)"(.*)$`)
	tableHeaderRe := regexp.MustCompile(`^\s*\[([^\]]+)\]\s*$`)

	found := false
	for i, line := range lines {
		if m := tableHeaderRe.FindSubmatch(line); m != nil {
			inTable = string(m[1]) == joinTOMLPath(table)
			continue
		}
		if !inTable {
			continue
		}
		if m := keyRe.FindSubmatch(line); m != nil {
			lines[i] = append(append([]byte(nil), m[1]...), []byte(`"`+newValue+`"`+string(m[3]))...)
			found = true
			break
		}
	}

	if !found {
		return nil, fmt.Errorf("key %q not found under table %s", key, tableHeader)
	}
	return bytes.Join(lines, []byte("\n")), nil
}

func joinTOMLPath(path []string) string {
	out := ""
	for i, p := range path {
		if i > 0 {
			out += "."
		}
		out += p
	}
	return out
}

// rewriteDependencySpec rewrites a dependency's version requirement
// in-place in a TOML manifest (pyproject.toml `dependencies = [...]`
// array entries, or Cargo.toml `[dependencies]` table entries),
// preserving everything else in the file. This is deliberately
// line-oriented rather than a structural TOML edit for the same reason
// as rewriteTOMLScalar.
func rewriteDependencySpec(data []byte, depName, newVersionOrReq string) ([]byte, error) {
	lines := bytes.Split(data, []byte("\n"))

	// Cargo.toml-style: `name = "req"` or `name = { version = "req", ... }`
	cargoRe := regexp.MustCompile(`^(\s*` + regexp.QuoteMeta(depName) + `\s*=\s*)"([^"]*)"(.*)$`)
	cargoTableRe := regexp.MustCompile(`^(\s*` + regexp.QuoteMeta(depName) + `\s*=\s*\{[^}]*version\s*=\s*)"([^"]*)"(.*)$`)
	// pyproject.toml PEP 508 array entry: `"name>=1.0.0",`
	pep508Re := regexp.MustCompile(`^(\s*")` + regexp.QuoteMeta(depName) + `[^"]*("\s*,?\s*)$`)

	found := false
	for i, line := range lines {
		if m := cargoTableRe.FindSubmatch(line); m != nil {
			lines[i] = append(append([]byte(nil), m[1]...), []byte(`"`+newVersionOrReq+`"`+string(m[3]))...)
			found = true
			break
		}
		if m := cargoRe.FindSubmatch(line); m != nil {
			lines[i] = append(append([]byte(nil), m[1]...), []byte(`"`+newVersionOrReq+`"`+string(m[3]))...)
			found = true
			break
		}
		if m := pep508Re.FindSubmatch(line); m != nil {
			rebuilt := append([]byte(nil), m[1]...)
			rebuilt = append(rebuilt, []byte(depName+newVersionOrReq)...)
			rebuilt = append(rebuilt, m[2]...)
			lines[i] = rebuilt
			found = true
			break
		}
	}

	if !found {
		return nil, fmt.Errorf("dependency %q not found in manifest", depName)
	}
	return bytes.Join(lines, []byte("\n")), nil
}
