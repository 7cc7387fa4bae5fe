package chatgateway

import "strings"

// Command is a parsed slash-style text command recognized by the
// gateway's command surface (§4.6: stop, clear, model, loop_limit,
// context).
type Command struct {
	Name string
	Args []string
}

// ParseCommand recognizes the small fixed command surface from a raw
// message. Commands are whitespace-separated tokens, case-insensitive
// in the command name; everything after the recognized verb (and
// optional sub-verb) is returned verbatim as the remaining argument so
// a context path containing spaces round-trips.
func ParseCommand(content string) (Command, bool) {
	fields := strings.Fields(content)
	if len(fields) == 0 {
		return Command{}, false
	}
	verb := strings.ToLower(fields[0])

	switch verb {
	case "stop", "clear":
		return Command{Name: verb}, true

	case "model":
		if len(fields) < 2 {
			return Command{}, false
		}
		switch strings.ToLower(fields[1]) {
		case "list":
			return Command{Name: "model_list"}, true
		case "set":
			if len(fields) < 3 {
				return Command{}, false
			}
			return Command{Name: "model_set", Args: []string{fields[2]}}, true
		}
		return Command{}, false

	case "loop_limit":
		if len(fields) < 2 {
			return Command{}, false
		}
		switch strings.ToLower(fields[1]) {
		case "get":
			return Command{Name: "loop_limit_get"}, true
		case "set":
			if len(fields) < 3 {
				return Command{}, false
			}
			return Command{Name: "loop_limit_set", Args: []string{fields[2]}}, true
		}
		return Command{}, false

	case "context":
		if len(fields) < 2 {
			return Command{}, false
		}
		switch strings.ToLower(fields[1]) {
		case "add":
			if len(fields) < 4 {
				return Command{}, false
			}
			return Command{Name: "context_add", Args: []string{strings.ToLower(fields[2]), strings.Join(fields[3:], " ")}}, true
		case "remove":
			if len(fields) < 3 {
				return Command{}, false
			}
			return Command{Name: "context_remove", Args: []string{fields[2]}}, true
		case "list":
			return Command{Name: "context_list"}, true
		case "status":
			return Command{Name: "context_status"}, true
		case "clear":
			return Command{Name: "context_clear"}, true
		}
		return Command{}, false
	}

	return Command{}, false
}
