package service

import "github.com/joeblew999/plat-mapview/internal/logging"

var (
	busLog     = logging.NewLogger("bus")
	catalogLog = logging.NewLogger("catalog")
	sessionLog = logging.NewLogger("sessions")
)
