package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/midbel/cli"
	"github.com/midbel/xcore/xpath"
)

var mergeCmd = cli.Command{
	Name:    "merge",
	Summary: "merge json objects as persistent maps",
	Handler: &MergeCmd{},
}

type MergeCmd struct {
	Duplicates string
	Compact    bool
}

func (m *MergeCmd) Run(args []string) error {
	set := cli.NewFlagSet("merge")
	set.StringVar(&m.Duplicates, "duplicates", "use-first", "policy for keys present in several objects")
	set.BoolVar(&m.Compact, "compact", false, "write compact output")
	if err := set.Parse(args); err != nil {
		return err
	}
	policy, err := xpath.ParseDuplicates(m.Duplicates)
	if err != nil {
		return err
	}
	var maps []xpath.MapItem
	for _, f := range set.Args() {
		var obj map[string]any
		if err := decodeFile(f, &obj); err != nil {
			return fmt.Errorf("%s: %w", f, err)
		}
		mi, err := mapOf(obj)
		if err != nil {
			return fmt.Errorf("%s: %w", f, err)
		}
		maps = append(maps, mi)
	}
	res, err := xpath.Merge(maps, policy)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	if !m.Compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(toJSON(res))
}

func mapOf(obj map[string]any) (xpath.MapItem, error) {
	var res xpath.MapItem = xpath.EmptyMap()
	for k, v := range obj {
		value, err := groundedOf(v)
		if err != nil {
			return nil, err
		}
		if res, err = res.Put(xpath.String(k), value); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// groundedOf converts a decoded json value. Objects become maps and arrays
// become arrays, null gives the empty sequence.
func groundedOf(v any) (xpath.Grounded, error) {
	switch v := v.(type) {
	case map[string]any:
		m, err := mapOf(v)
		if err != nil {
			return nil, err
		}
		return xpath.Sequence{m}, nil
	case []any:
		var members []xpath.Grounded
		for _, x := range v {
			g, err := groundedOf(x)
			if err != nil {
				return nil, err
			}
			members = append(members, g)
		}
		return xpath.Sequence{xpath.NewArray(members...)}, nil
	default:
		return literalOf(v)
	}
}
