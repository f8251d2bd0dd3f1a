package tui

import "github.com/charmbracelet/bubbles/key"

// selectKeys maps digit keys to candidate positions; "0" is the tenth.
var selectKeys = []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "0"}

type keyMap struct {
	Select  key.Binding
	Start   key.Binding
	Restart key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func newKeyMap(candidates int) keyMap {
	count := min(max(candidates, 1), len(selectKeys))
	keys := selectKeys[:count]
	return keyMap{
		Select: key.NewBinding(
			key.WithKeys(keys...),
			key.WithHelp(keys[0]+"-"+keys[count-1], "pick"),
		),
		Start: key.NewBinding(
			key.WithKeys(" ", "space", "enter"),
			key.WithHelp("space", "start"),
		),
		Restart: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "restart"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Select, k.Start, k.Restart, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Select, k.Start},
		{k.Restart, k.Help, k.Quit},
	}
}

// candidateIndex returns the candidate position a digit key selects.
func candidateIndex(keyName string) (int, bool) {
	for i, k := range selectKeys {
		if k == keyName {
			return i, true
		}
	}
	return 0, false
}
