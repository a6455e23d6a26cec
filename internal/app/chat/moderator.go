package chat

import (
	"slices"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Moderator masks dictionary words in chat text. A nil or zero Moderator
// censors nothing.
type Moderator struct {
	machine *goahocorasick.Machine
	mask    rune
}

// NewModerator folds the dictionary once and builds the automaton over it.
// Words that fold to nothing are ignored.
func NewModerator(words []string, mask rune) (*Moderator, error) {
	dict := make([][]rune, 0, len(words))
	for _, w := range words {
		if f := foldLine([]rune(w)); len(f.runes) > 0 {
			dict = append(dict, f.runes)
		}
	}
	if len(dict) == 0 {
		return &Moderator{mask: mask}, nil
	}
	// the double-array trie wants sorted, unique keys
	slices.SortFunc(dict, func(a, b []rune) int { return slices.Compare(a, b) })
	dict = slices.CompactFunc(dict, func(a, b []rune) bool { return slices.Equal(a, b) })

	machine := new(goahocorasick.Machine)
	if err := machine.Build(dict); err != nil {
		return nil, err
	}
	return &Moderator{machine: machine, mask: mask}, nil
}

// Censor masks every rune of text that took part in a dictionary hit,
// including the spacing and punctuation inside the hit.
func (m *Moderator) Censor(text string) string {
	if m == nil || m.machine == nil {
		return text
	}
	runes := []rune(text)
	line := foldLine(runes)
	if len(line.runes) == 0 {
		return text
	}
	hits := m.machine.MultiPatternSearch(line.runes, false)
	if len(hits) == 0 {
		return text
	}
	for _, hit := range hits {
		first, last := hit.Pos, hit.Pos+len(hit.Word)-1
		if first < 0 || last >= len(line.at) {
			continue
		}
		for i := line.at[first]; i <= line.at[last]; i++ {
			runes[i] = m.mask
		}
	}
	return string(runes)
}

// folded is a line reduced to the runes the dictionary is matched against.
// at[i] is the index in the original line of runes[i].
type folded struct {
	runes []rune
	at    []int
}

func foldLine(line []rune) folded {
	f := folded{runes: make([]rune, 0, len(line)), at: make([]int, 0, len(line))}
	for i, r := range line {
		if c, ok := foldRune(r); ok {
			f.runes = append(f.runes, c)
			f.at = append(f.at, i)
		}
	}
	return f
}

var standIns = map[rune]rune{
	'4': 'a', '@': 'a',
	'3': 'e', '€': 'e',
	'1': 'i', '!': 'i', '|': 'i',
	'0': 'o',
	'5': 's', '$': 's',
}

// foldRune lowercases r and maps digit and symbol stand-ins back to letters.
// Any other space, punctuation or symbol folds away.
func foldRune(r rune) (rune, bool) {
	if c, ok := standIns[r]; ok {
		return c, true
	}
	if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) {
		return 0, false
	}
	return unicode.ToLower(r), true
}
