package tracker

// Action names the outcome of a detection or timer expiry. Action values are
// what the notification dispatcher consumes; they are part of the external
// surface and stay stable.
type Action string

const (
	ActionEntry            Action = "ENTRY"
	ActionUpdateSameCamera Action = "UPDATE_SAME_CAMERA"
	ActionMoved            Action = "MOVED"
	ActionExit             Action = "EXIT"
	ActionDuplicate        Action = "DUPLICATE"
	ActionParked           Action = "PARKED"
	ActionNoAction         Action = "NO_ACTION"
)

// DetectResult is the outcome of OnDetect.
type DetectResult struct {
	Action   Action   `json:"action"`
	Plate    string   `json:"plate"`
	Path     []string `json:"path,omitempty"`
	LastSeen string   `json:"last_seen,omitempty"`
	Msg      string   `json:"msg"`
}

// ExpireResult is the outcome of OnTimerExpire.
type ExpireResult struct {
	Action         Action `json:"action"`
	Plate          string `json:"plate"`
	LastSeenCamera string `json:"last_seen_camera,omitempty"`
	FinalStatus    string `json:"final_status,omitempty"`
	Msg            string `json:"msg"`
}
