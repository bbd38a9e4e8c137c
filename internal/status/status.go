// Package status holds the service request workflow states. The admin status
// is the stored source of truth; the client status is always derived from it.
package status

import "fmt"

// Admin is the authoritative five-state workflow status.
type Admin string

const (
	Requested  Admin = "requested"
	Confirmed  Admin = "confirmed"
	InProgress Admin = "in_progress"
	Completed  Admin = "completed"
	Cancelled  Admin = "cancelled"
)

// Client is the display-only status shown in the client portal. Never stored.
type Client string

const (
	ClientPending    Client = "Pending"
	ClientInProgress Client = "In Progress"
	ClientInReview   Client = "In Review"
	ClientCompleted  Client = "Completed"

	// ClientCancelled is not part of the current client vocabulary. It is what
	// IntendedClient returns for cancelled requests.
	ClientCancelled Client = "Cancelled"
)

// happyPath is the forward order of the workflow. Cancelled sits off the path.
var happyPath = []Admin{Requested, Confirmed, InProgress, Completed}

// clientByAdmin is the single mapping table from admin to client status.
// cancelled -> Completed is the current product behavior; see IntendedClient.
var clientByAdmin = map[Admin]Client{
	Requested:  ClientPending,
	Confirmed:  ClientInProgress,
	InProgress: ClientInProgress,
	Completed:  ClientCompleted,
	Cancelled:  ClientCompleted,
}

// adminByClient maps client intents back to admin status. In Review has no
// admin equivalent and collapses to in_progress.
var adminByClient = map[Client]Admin{
	ClientPending:    Requested,
	ClientInProgress: InProgress,
	ClientInReview:   InProgress,
	ClientCompleted:  Completed,
	ClientCancelled:  Cancelled,
}

var progressByAdmin = map[Admin]int{
	Requested:  25,
	Confirmed:  50,
	InProgress: 75,
	Completed:  100,
	Cancelled:  0,
}

// All returns every admin status in board column order.
func All() []Admin {
	return []Admin{Requested, Confirmed, InProgress, Completed, Cancelled}
}

func ParseAdmin(s string) (Admin, error) {
	switch a := Admin(s); a {
	case Requested, Confirmed, InProgress, Completed, Cancelled:
		return a, nil
	default:
		return "", fmt.Errorf("unknown status: %s", s)
	}
}

func ParseClient(s string) (Client, error) {
	switch c := Client(s); c {
	case ClientPending, ClientInProgress, ClientInReview, ClientCompleted:
		return c, nil
	default:
		return "", fmt.Errorf("unknown client status: %s", s)
	}
}

func (a Admin) Valid() bool {
	_, ok := clientByAdmin[a]
	return ok
}

func (a Admin) IsTerminal() bool {
	return a == Completed || a == Cancelled
}

// ToClient derives the client status. Unknown input reads as Pending so the
// function stays total.
func ToClient(a Admin) Client {
	if c, ok := clientByAdmin[a]; ok {
		return c
	}
	return ClientPending
}

// IntendedClient is the likely-intended display, which differs from ToClient
// only for cancelled requests.
func IntendedClient(a Admin) Client {
	if a == Cancelled {
		return ClientCancelled
	}
	return ToClient(a)
}

// ToAdmin maps a client-side intent to an admin status.
func ToAdmin(c Client) (Admin, bool) {
	a, ok := adminByClient[c]
	return a, ok
}

// Progress is the completion percentage shown on cards, 25 through 100 along
// the happy path. A cancelled request reads 0.
func Progress(a Admin) int {
	return progressByAdmin[a]
}

// Next returns the following happy-path status. ok is false at completed and
// for off-path states.
func Next(a Admin) (next Admin, ok bool) {
	i := pathIndex(a)
	if i < 0 || i == len(happyPath)-1 {
		return "", false
	}
	return happyPath[i+1], true
}

// CanTransition allows staying put, cancelling any non-terminal request, and
// moving forward along the happy path. Terminal states only allow staying put.
func CanTransition(from, to Admin) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	if from.IsTerminal() {
		return false
	}
	if to == Cancelled {
		return true
	}
	return pathIndex(to) > pathIndex(from)
}

func pathIndex(a Admin) int {
	for i, s := range happyPath {
		if s == a {
			return i
		}
	}
	return -1
}
