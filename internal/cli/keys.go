package cli

import "github.com/charmbracelet/bubbles/key"

type boardKeyMap struct {
	Left      key.Binding
	Right     key.Binding
	Up        key.Binding
	Down      key.Binding
	MoveLeft  key.Binding
	MoveRight key.Binding
	RaiseCard key.Binding
	LowerCard key.Binding
	More      key.Binding
	Add       key.Binding
	Edit      key.Binding
	Reload    key.Binding
	Help      key.Binding
	Quit      key.Binding
}

func newBoardKeyMap() boardKeyMap {
	return boardKeyMap{
		Left:      key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "column")),
		Right:     key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "column")),
		Up:        key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "card")),
		Down:      key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "card")),
		MoveLeft:  key.NewBinding(key.WithKeys("<", "H"), key.WithHelp("<", "move left")),
		MoveRight: key.NewBinding(key.WithKeys(">", "L"), key.WithHelp(">", "move right")),
		RaiseCard: key.NewBinding(key.WithKeys("K"), key.WithHelp("K", "raise")),
		LowerCard: key.NewBinding(key.WithKeys("J"), key.WithHelp("J", "lower")),
		More:      key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "load more")),
		Add:       key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
		Edit:      key.NewBinding(key.WithKeys("e", "enter"), key.WithHelp("e", "edit")),
		Reload:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k boardKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Left, k.Down, k.MoveRight, k.Add, k.Edit, k.Help, k.Quit}
}

func (k boardKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Left, k.Right, k.Up, k.Down},
		{k.MoveLeft, k.MoveRight, k.RaiseCard, k.LowerCard},
		{k.More, k.Add, k.Edit, k.Reload},
		{k.Help, k.Quit},
	}
}
