package wire

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrMalformed is wrapped by every validation and decoding failure
var ErrMalformed = errors.New("malformed command")

var validate = validator.New()

// ValidateCommand checks the structure of a single command: tag ranges, field
// constraints and that exactly the payload matching Op is present.
func ValidateCommand(cmd *Command) error {
	if cmd == nil {
		return fmt.Errorf("%w: nil command", ErrMalformed)
	}
	if err := validate.Struct(cmd); err != nil {
		return formatValidationError(err)
	}

	var want string
	switch cmd.Op {
	case OpAddNode:
		want = "AddNode"
	case OpAddEdge:
		want = "AddEdge"
	case OpQueryNode:
		want = "QueryNode"
	}

	present := make([]string, 0, 1)
	if cmd.AddNode != nil {
		present = append(present, "AddNode")
	}
	if cmd.AddEdge != nil {
		present = append(present, "AddEdge")
	}
	if cmd.QueryNode != nil {
		present = append(present, "QueryNode")
	}

	switch {
	case want == "" && len(present) > 0:
		return fmt.Errorf("%w: %s carries unexpected payload %s", ErrMalformed, cmd.Op, strings.Join(present, ","))
	case want != "" && (len(present) != 1 || present[0] != want):
		return fmt.Errorf("%w: %s requires exactly one %s payload", ErrMalformed, cmd.Op, want)
	}

	if cmd.Op == OpQueryNode {
		return validateQuery(cmd.QueryNode)
	}
	return nil
}

func validateQuery(qn *QueryNode) error {
	if qn.SourceRef > 0 && (qn.Label != "" || len(qn.Predicates) > 0) {
		return fmt.Errorf("%w: query with a source reference cannot also scan by label or predicates", ErrMalformed)
	}
	if qn.Result.Aggregate != AggNone && len(qn.Result.PropertyKeys) == 0 {
		return fmt.Errorf("%w: aggregate requires a property key", ErrMalformed)
	}
	return nil
}

// MaxGroups is the largest group count accepted for a batch of n commands.
// Every group but one needs at least one command to be worth a response slot.
func MaxGroups(n int) int {
	return max(1, n)
}

// ValidateBatch checks batch-level structure: every command is valid, NumGroups
// is at most MaxGroups(len(Commands)), and group ids are non-decreasing and below
// NumGroups.
func ValidateBatch(b *Batch) error {
	if b == nil {
		return fmt.Errorf("%w: nil batch", ErrMalformed)
	}
	if err := validate.Struct(b); err != nil {
		return formatValidationError(err)
	}
	if limit := MaxGroups(len(b.Commands)); b.NumGroups > limit {
		return fmt.Errorf("%w: %d groups for %d commands exceeds %d", ErrMalformed, b.NumGroups, len(b.Commands), limit)
	}
	last := 0
	for i, cmd := range b.Commands {
		if err := ValidateCommand(cmd); err != nil {
			return fmt.Errorf("command %d: %w", i, err)
		}
		if cmd.GroupID >= b.NumGroups {
			return fmt.Errorf("%w: command %d group %d outside [0, %d)", ErrMalformed, i, cmd.GroupID, b.NumGroups)
		}
		if cmd.GroupID < last {
			return fmt.Errorf("%w: command %d group %d decreases from %d", ErrMalformed, i, cmd.GroupID, last)
		}
		last = cmd.GroupID
	}
	return nil
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("%w: %s", ErrMalformed, strings.Join(msgs, "; "))
}
