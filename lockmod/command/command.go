package command

import (
	"fmt"
	"strings"
)

var DefaultMarker = "/"

type Verb int

const (
	VerbUnknown Verb = iota
	VerbGroupName
	VerbNicknames
	VerbNickname
	VerbEmoji
	VerbAntiOut
	VerbAddUser
	VerbUID
	VerbGroupInfo
	VerbTarget
	VerbHelp
)

var verbNames = map[string]Verb{
	"groupname": VerbGroupName,
	"nicknames": VerbNicknames,
	"nickname":  VerbNickname,
	"emoji":     VerbEmoji,
	"antiout":   VerbAntiOut,
	"adduser":   VerbAddUser,
	"uid":       VerbUID,
	"groupinfo": VerbGroupInfo,
	"target":    VerbTarget,
	"help":      VerbHelp,
}

// ordered for help output
var allVerbs = []Verb{
	VerbGroupName,
	VerbNicknames,
	VerbNickname,
	VerbEmoji,
	VerbAntiOut,
	VerbAddUser,
	VerbUID,
	VerbGroupInfo,
	VerbTarget,
	VerbHelp,
}

func (v Verb) String() string {
	for name, verb := range verbNames {
		if verb == v {
			return name
		}
	}
	return "unknown"
}

// Mutating verbs change the policy store or the group itself; the rest only reply.
func (v Verb) Mutating() bool {
	switch v {
	case VerbUID, VerbGroupInfo, VerbHelp, VerbUnknown:
		return false
	default:
		return true
	}
}

// Parsed administrator command. Discarded after execution.
type Command struct {
	Verb Verb
	Args []string
}

// Parses message text into a Command. The first whitespace-separated token, with the optional marker prefix stripped and case-folded, selects the verb.
//
// Returns false if the text is empty or the verb is not recognized.
func Parse(text, marker string) (Command, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return Command{}, false
	}
	head := fields[0]
	if marker != "" {
		head = strings.TrimPrefix(head, marker)
	}
	verb, ok := verbNames[strings.ToLower(head)]
	if !ok {
		return Command{}, false
	}
	return Command{Verb: verb, Args: fields[1:]}, true
}

// Returns the i-th argument, or empty string if absent.
func (c Command) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}

// Sub-action (first argument) case-folded, eg "on" or "off".
func (c Command) Action() string {
	return strings.ToLower(c.Arg(0))
}

// Joins arguments from index i onward with single spaces. Used for multi-word titles and nicknames.
func (c Command) Rest(i int) string {
	if i >= len(c.Args) {
		return ""
	}
	return strings.Join(c.Args[i:], " ")
}

// Short usage hint for a single verb.
func Usage(v Verb, marker string) string {
	switch v {
	case VerbGroupName:
		return fmt.Sprintf("%sgroupname on <name> | %sgroupname off", marker, marker)
	case VerbNicknames:
		return fmt.Sprintf("%snicknames on <nickname> | %snicknames off", marker, marker)
	case VerbNickname:
		return fmt.Sprintf("%snickname on <uid> <nickname> | %snickname off <uid>", marker, marker)
	case VerbEmoji:
		return fmt.Sprintf("%semoji <emoji> | %semoji off", marker, marker)
	case VerbAntiOut:
		return fmt.Sprintf("%santiout on | %santiout off", marker, marker)
	case VerbAddUser:
		return fmt.Sprintf("%sadduser <uid>", marker)
	case VerbUID:
		return fmt.Sprintf("%suid", marker)
	case VerbGroupInfo:
		return fmt.Sprintf("%sgroupinfo", marker)
	case VerbTarget:
		return fmt.Sprintf("%starget on <uid> | %starget off", marker, marker)
	case VerbHelp:
		return fmt.Sprintf("%shelp", marker)
	default:
		return ""
	}
}

// Full command listing, one usage line per verb.
func HelpText(marker string) string {
	lines := []string{"Commands:"}
	for _, v := range allVerbs {
		lines = append(lines, "• "+Usage(v, marker))
	}
	return strings.Join(lines, "\n")
}
