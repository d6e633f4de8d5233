package query

import "github.com/dd0wney/cluso-graphquery/pkg/wire"

// committedResponse merges per-command responses into one entry per group.
// Groups without commands are reported as empty successes.
func committedResponse(txID string, groups [][]*wire.CommandResponse) *wire.ResponseBatch {
	out := &wire.ResponseBatch{TxID: txID, Groups: make([]*wire.GroupResponse, len(groups))}
	for id, cmds := range groups {
		out.Groups[id] = mergeGroup(id, cmds)
	}
	return out
}

func mergeGroup(id int, cmds []*wire.CommandResponse) *wire.GroupResponse {
	g := &wire.GroupResponse{GroupID: id, Commands: cmds}
	for _, c := range cmds {
		if c.Status == wire.StatusError && g.Status == wire.StatusSuccess {
			g.Status = wire.StatusError
			g.ErrorCode = c.ErrorCode
			g.Error = c.Error
		}
		g.Matched += c.Matched
		g.Returned += c.Returned
		g.Records = append(g.Records, c.Records...)
		if c.Aggregate != nil {
			g.Aggregate = c.Aggregate
		}
	}
	return g
}

// abortedResponse reports every group as failed. A failure with a negative group
// concerns the whole batch and its kind is given to every group; otherwise the
// failing group carries the failure and the rest are reported as aborted.
func abortedResponse(txID string, numGroups int, fail *failure) *wire.ResponseBatch {
	kind := KindOf(fail.err)
	msg := fail.err.Error()

	if fail.resp != nil {
		fail.resp.Status = wire.StatusError
		fail.resp.ErrorCode = kind.Code()
		fail.resp.Error = msg
		fail.resp.Records = nil
		fail.resp.Matched, fail.resp.Returned = 0, 0
		fail.resp.Aggregate = nil
		fail.resp.Created = nil
	}

	out := &wire.ResponseBatch{TxID: txID, Groups: make([]*wire.GroupResponse, numGroups)}
	for id := range out.Groups {
		g := &wire.GroupResponse{GroupID: id, Status: wire.StatusError}
		switch {
		case fail.group < 0 || id == fail.group:
			g.ErrorCode = kind.Code()
			g.Error = msg
			if fail.resp != nil {
				g.Commands = []*wire.CommandResponse{fail.resp}
			}
		default:
			g.ErrorCode = wire.CodeAborted
			g.Error = ErrAborted.Error() + ": " + msg
		}
		out.Groups[id] = g
	}
	return out
}
