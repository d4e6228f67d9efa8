package overrides

import (
	"fmt"
	"strings"
)

const varFlagPrefix = "--var-"

// SplitVarArgs removes every --var-<name>=<value> argument from args and
// returns the variables plus the remaining arguments in their original
// order. Arguments after a bare "--" are left untouched.
func SplitVarArgs(args []string) (map[string]string, []string, error) {
	vars := map[string]string{}
	rest := make([]string, 0, len(args))

	for i, arg := range args {
		if arg == "--" {
			rest = append(rest, args[i:]...)
			break
		}
		if !strings.HasPrefix(arg, varFlagPrefix) {
			rest = append(rest, arg)
			continue
		}

		spec := strings.TrimPrefix(arg, varFlagPrefix)
		name, value, ok := strings.Cut(spec, "=")
		if !ok || name == "" {
			return nil, nil, fmt.Errorf("invalid variable flag %q: expected --var-<name>=<value>", arg)
		}
		vars[name] = value
	}
	return vars, rest, nil
}
