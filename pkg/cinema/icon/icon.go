// Package icon holds the tray and notification icons.
package icon

import _ "embed"

var (
	//go:embed cinema.ico
	CinemaLogo []byte

	//go:embed pause.ico
	Pause []byte

	//go:embed resume.ico
	Resume []byte
)
