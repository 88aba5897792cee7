package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const enderFlag = "-ender"

// EntryArg is one "@player:score[:style][:errors]" token.
type EntryArg struct {
	Username string
	Score    int
	Style    string
	Errors   int
}

type RoundArgs struct {
	Entries []EntryArg
	Ender   string
}

type StartArgs struct {
	Usernames    []string
	WinningScore int
	Location     string
}

// commandArgs strips the "/command@bot" prefix from a message text.
func commandArgs(text string) string {
	i := strings.IndexAny(text, " \n\t")
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(text[i+1:])
}

func parseMention(token string) (string, bool) {
	if !strings.HasPrefix(token, "@") || len(token) < 2 {
		return "", false
	}
	return token[1:], true
}

// ParseStart reads "@a @b [winning score] [location ...]".
func ParseStart(args string) (StartArgs, error) {
	var out StartArgs
	var location []string
	for _, token := range strings.Fields(args) {
		if name, ok := parseMention(token); ok {
			out.Usernames = append(out.Usernames, name)
			continue
		}
		if n, err := strconv.Atoi(token); err == nil && out.WinningScore == 0 && len(location) == 0 {
			if n <= 0 {
				return StartArgs{}, fmt.Errorf("winning score must be positive, got %d", n)
			}
			out.WinningScore = n
			continue
		}
		location = append(location, token)
	}
	out.Location = strings.Join(location, " ")
	return out, nil
}

// ParseRound reads "@a:10[:style][:errors] ... [-ender @x]".
func ParseRound(args string) (RoundArgs, error) {
	var out RoundArgs
	tokens := strings.Fields(args)
	for i := 0; i < len(tokens); i++ {
		token := tokens[i]
		if token == enderFlag {
			if i+1 >= len(tokens) {
				return RoundArgs{}, errors.New("-ender needs a player, e.g. -ender @anna")
			}
			name, ok := parseMention(tokens[i+1])
			if !ok {
				return RoundArgs{}, fmt.Errorf("cannot read round ender %q, mention the player with @", tokens[i+1])
			}
			out.Ender = name
			i++
			continue
		}
		entry, err := parseEntry(token)
		if err != nil {
			return RoundArgs{}, err
		}
		out.Entries = append(out.Entries, entry)
	}
	if len(out.Entries) == 0 {
		return RoundArgs{}, errors.New("no scores given, expected @player:score[:style][:errors]")
	}
	return out, nil
}

// ParseFix reads "<round> @a:10 ... [-ender @x]".
func ParseFix(args string) (int, RoundArgs, error) {
	head, rest := strings.TrimSpace(args), ""
	if i := strings.IndexAny(head, " \n\t"); i >= 0 {
		head, rest = head[:i], head[i+1:]
	}
	number, err := strconv.Atoi(head)
	if err != nil || number <= 0 {
		return 0, RoundArgs{}, fmt.Errorf("expected a round number first, got %q", head)
	}
	round, err := ParseRound(rest)
	if err != nil {
		return 0, RoundArgs{}, err
	}
	return number, round, nil
}

func parseEntry(token string) (EntryArg, error) {
	parts := strings.Split(token, ":")
	name, ok := parseMention(parts[0])
	if !ok {
		return EntryArg{}, fmt.Errorf("cannot read %q, expected @player:score[:style][:errors]", token)
	}
	if len(parts) < 2 || len(parts) > 4 {
		return EntryArg{}, fmt.Errorf("cannot read %q, expected @player:score[:style][:errors]", token)
	}
	entry := EntryArg{Username: name}
	score, err := strconv.Atoi(parts[1])
	if err != nil {
		return EntryArg{}, fmt.Errorf("score for @%s must be a whole number, got %q", name, parts[1])
	}
	entry.Score = score
	if len(parts) > 2 {
		entry.Style = strings.ToLower(parts[2])
	}
	if len(parts) > 3 {
		errCount, err := strconv.Atoi(parts[3])
		if err != nil || errCount < 0 {
			return EntryArg{}, fmt.Errorf("errors for @%s must be a non-negative whole number, got %q", name, parts[3])
		}
		entry.Errors = errCount
	}
	return entry, nil
}
