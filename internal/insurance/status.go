package insurance

// Status tracks a record's position in the coverage lifecycle
type Status int32

const (
	// StatusNone is the zero value: no record exists
	StatusNone Status = iota
	StatusRequested
	StatusApproved
	StatusCoverRequested
	StatusCoverApproved
	StatusCoverRejected
)

func (s Status) String() string {
	switch s {
	case StatusNone:
		return "None"
	case StatusRequested:
		return "Requested"
	case StatusApproved:
		return "Approved"
	case StatusCoverRequested:
		return "CoverRequested"
	case StatusCoverApproved:
		return "CoverApproved"
	case StatusCoverRejected:
		return "CoverRejected"
	default:
		return "Unknown"
	}
}

// CanTransitionTo validates lifecycle transitions. Rejection, payout,
// and deletion remove the record outright, so they do not appear here:
// every removal path ends back at StatusNone.
func (s Status) CanTransitionTo(next Status) bool {
	validTransitions := map[Status][]Status{
		StatusNone: {
			StatusRequested,
		},
		StatusRequested: {
			StatusApproved,
			StatusNone, // rejected or deleted
		},
		StatusApproved: {
			StatusCoverRequested,
			StatusNone, // deleted or lapsed
		},
		StatusCoverRequested: {
			StatusCoverApproved,
			StatusCoverRejected,
			StatusNone,
		},
		StatusCoverApproved: {
			StatusNone, // funds unlocked (terminal payout)
		},
		StatusCoverRejected: {
			StatusApproved, // accept-rejection restores prior coverage
			StatusNone,
		},
	}

	allowed, ok := validTransitions[s]
	if !ok {
		return false
	}

	for _, allowedStatus := range allowed {
		if next == allowedStatus {
			return true
		}
	}

	return false
}
