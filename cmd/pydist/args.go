package main

import "strings"

// reorderInterspersedFlags moves flag tokens ahead of positionals so the
// standard flag package, which stops at the first positional, still sees
// every flag. valueFlags names the flags that consume the next token.
func reorderInterspersedFlags(arguments []string, valueFlags map[string]bool) []string {
	var flags, positionals []string
	for index := 0; index < len(arguments); index++ {
		argument := arguments[index]
		if argument == "--" {
			positionals = append(positionals, arguments[index+1:]...)
			break
		}
		if len(argument) < 2 || !strings.HasPrefix(argument, "-") {
			positionals = append(positionals, argument)
			continue
		}
		flags = append(flags, argument)
		if strings.Contains(argument, "=") {
			continue
		}
		if valueFlags[strings.TrimLeft(argument, "-")] && index+1 < len(arguments) {
			index++
			flags = append(flags, arguments[index])
		}
	}
	return append(flags, positionals...)
}
