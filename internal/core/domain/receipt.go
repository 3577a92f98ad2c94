package domain

import "time"

// BuildReceipt records the last successful build of a target.
type BuildReceipt struct {
	Target      string    `json:"target"`
	Archs       []Arch    `json:"archs"`
	InstallPath string    `json:"installPath"`
	Timestamp   time.Time `json:"timestamp"`
}
