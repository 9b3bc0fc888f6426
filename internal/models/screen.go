package models

import "fmt"

// Screen is the view the client should render
type Screen string

const (
	ScreenOnboarding     Screen = "onboarding"
	ScreenAuth           Screen = "auth"
	ScreenRegister       Screen = "register"
	ScreenDashboard      Screen = "dashboard"
	ScreenLobby          Screen = "lobby"
	ScreenTripPlanning   Screen = "tripPlanning"
	ScreenMap            Screen = "map"
	ScreenAR             Screen = "ar"
	ScreenCompletedTrips Screen = "completedTrips"
)

var screens = []Screen{
	ScreenOnboarding,
	ScreenAuth,
	ScreenRegister,
	ScreenDashboard,
	ScreenLobby,
	ScreenTripPlanning,
	ScreenMap,
	ScreenAR,
	ScreenCompletedTrips,
}

// Screens lists the closed set of screens
func Screens() []Screen {
	return append([]Screen(nil), screens...)
}

// ParseScreen validates a screen name
func ParseScreen(s string) (Screen, error) {
	for _, sc := range screens {
		if string(sc) == s {
			return sc, nil
		}
	}
	return "", fmt.Errorf("unknown screen %q", s)
}
