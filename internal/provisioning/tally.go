package provisioning

import (
	"fmt"
	"strings"
)

// Tally is one polling tick's classification of the instances under watch.
// Every instance id appears in at most one bucket.
type Tally struct {
	Target  int
	Ready   []string
	Waiting []string
	Other   []string
}

// Done reports whether the ready bucket reached the target.
func (t Tally) Done() bool {
	return t.Target > 0 && len(t.Ready) >= t.Target
}

func (t Tally) String() string {
	s := fmt.Sprintf("ready %d/%d, waiting %d", len(t.Ready), t.Target, len(t.Waiting))
	if len(t.Other) > 0 {
		s += fmt.Sprintf(", other %d [%s]", len(t.Other), strings.Join(t.Other, " "))
	}
	return s
}
