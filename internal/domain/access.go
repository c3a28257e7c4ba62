package domain

import "fmt"

// AccessTier is the session state a screen requires.
type AccessTier int

const (
	TierPublic AccessTier = iota
	TierAuthIncomplete
	TierAuthComplete
)

func (t AccessTier) String() string {
	switch t {
	case TierPublic:
		return "public"
	case TierAuthIncomplete:
		return "authIncomplete"
	case TierAuthComplete:
		return "authComplete"
	default:
		return fmt.Sprintf("AccessTier(%d)", int(t))
	}
}

// Phase is the lifecycle state derived from a session snapshot.
type Phase string

const (
	PhaseInitializing            Phase = "initializing"
	PhaseUnauthenticated         Phase = "unauthenticated"
	PhaseAuthenticatedIncomplete Phase = "authenticated_incomplete"
	PhaseAuthenticatedComplete   Phase = "authenticated_complete"
)
