package shell

import (
	"fmt"
	"strings"
)

// cmdMeta are the characters cmd.exe treats specially outside double quotes.
const cmdMeta = " \t&|<>^()"

// quoteCmdArg renders arg for a `cmd /C` command line. Characters cmd.exe
// expands or unbalances even inside quotes are rejected.
func quoteCmdArg(arg string) (string, error) {
	if arg == "" {
		return `""`, nil
	}
	if strings.ContainsAny(arg, "\"%!\r\n") {
		return "", fmt.Errorf("argument %q contains characters cmd.exe cannot pass through", arg)
	}
	if !strings.ContainsAny(arg, cmdMeta) {
		return arg, nil
	}
	// A trailing backslash would escape the closing quote.
	trailing := len(arg) - len(strings.TrimRight(arg, `\`))
	return `"` + arg + strings.Repeat(`\`, trailing) + `"`, nil
}

func joinCmdArgs(args []string) (string, error) {
	quoted := make([]string, 0, len(args))
	for _, arg := range args {
		q, err := quoteCmdArg(arg)
		if err != nil {
			return "", err
		}
		quoted = append(quoted, q)
	}
	return strings.Join(quoted, " "), nil
}
