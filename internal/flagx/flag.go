// Package flagx lets several loaders share os.Args without tripping over each
// other's flags.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// FilterArgs keeps only the flags named in allowedFlags together with their
// values, in their original order. Both "-f value" and "-f=value" forms are
// recognized. A token starting with "-" is never consumed as a value.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if name, _, ok := strings.Cut(arg, "="); ok && strings.HasPrefix(arg, "-") {
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; !ok {
			continue
		}
		filtered = append(filtered, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}

	return filtered
}

// lookupString parses a single string flag registered under every name in
// names from os.Args, ignoring unrelated arguments.
func lookupString(names ...string) string {
	var value string

	allowed := make([]string, 0, len(names))
	fs := flag.NewFlagSet("lookup", flag.ContinueOnError)
	fs.SetOutput(discard{})
	for _, n := range names {
		fs.StringVar(&value, n, "", "")
		allowed = append(allowed, "-"+n)
	}
	_ = fs.Parse(FilterArgs(os.Args[1:], allowed))

	return value
}

// ConfigFileFlag returns the JSON config path given with -c or -config, or ""
// when neither is present.
func ConfigFileFlag() string {
	return lookupString("config", "c")
}

// EnvFileFlag returns the dotenv path given with -env-file, or "".
func EnvFileFlag() string {
	return lookupString("env-file")
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
