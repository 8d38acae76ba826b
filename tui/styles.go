package tui

import "github.com/charmbracelet/lipgloss"

var (
	AppStyle = lipgloss.NewStyle().Padding(0, 0)

	// Mail list
	MailListItemStyle         = lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1)
	SelectedMailListItemStyle = MailListItemStyle

	NormalBoxCharStyle       = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "245", Dark: "238"})
	NormalSubjectStyle       = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "0", Dark: "15"})
	NormalSecondaryTextStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "240", Dark: "244"})

	SelectedBoxCharStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))
	SelectedSubjectStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("231")).Bold(true)
	SelectedSecondaryTextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("189"))

	MailListTitleStyle = lipgloss.NewStyle().Bold(true).MarginBottom(1).MarginLeft(1).Foreground(lipgloss.Color("63"))

	// Overlay
	OverlayStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder(), true).BorderForeground(lipgloss.Color("63")).Padding(0, 1)
	TitleStyle     = lipgloss.NewStyle().Bold(true).Background(lipgloss.Color("63")).Foreground(lipgloss.Color("255")).Padding(0, 1)
	HeaderKeyStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")).Width(6)
	HeaderValStyle = lipgloss.NewStyle()
	HintStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	ErrorBanner    = lipgloss.NewStyle().Background(lipgloss.Color("52")).Foreground(lipgloss.Color("255")).Padding(0, 1)

	// Status bar
	StatusBarSuccessStyle = lipgloss.NewStyle().Background(lipgloss.Color("28")).Foreground(lipgloss.Color("255")).Padding(0, 1)
	StatusBarNormalStyle  = lipgloss.NewStyle().Background(lipgloss.Color("235")).Foreground(lipgloss.Color("250")).Padding(0, 1)
	StatusBarErrorStyle   = lipgloss.NewStyle().Background(lipgloss.Color("196")).Foreground(lipgloss.Color("255")).Padding(0, 1)
)

// Box drawing characters
const (
	BoxTopLeft     = "┌"
	BoxTopRight    = "┐"
	BoxBottomLeft  = "└"
	BoxBottomRight = "┘"
	BoxHorizontal  = "─"
	BoxVertical    = "│"
)
