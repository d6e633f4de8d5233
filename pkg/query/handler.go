package query

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dd0wney/cluso-graphquery/pkg/logging"
	"github.com/dd0wney/cluso-graphquery/pkg/storage"
	"github.com/dd0wney/cluso-graphquery/pkg/wire"
)

// Handler runs command batches for one connection or worker. It is not safe for
// concurrent use; handlers of the same Engine serialize on the engine lock.
type Handler struct {
	engine *Engine
	logger logging.Logger
	refs   *ReferenceCache
}

// execCtx is the state of one transaction. It only exists while the engine
// lock is held.
type execCtx struct {
	txID   string
	store  *storage.GraphStorage
	tx     *storage.Transaction
	refs   *ReferenceCache
	begun  bool
	ended  bool
	logger logging.Logger
}

// failure is a command error together with the group it belongs to
type failure struct {
	group int
	resp  *wire.CommandResponse
	err   error
}

// ProcessBatch runs a decoded batch
func (h *Handler) ProcessBatch(b *wire.Batch) *wire.ResponseBatch {
	if b == nil {
		b = &wire.Batch{}
	}
	return h.ProcessQueries(b.Commands, b.NumGroups)
}

// Reject answers a request that could not be decoded. The group count is
// unknown, so the failure is reported as a single group 0 with
// KindMalformedCommand. Nothing touches the store.
func (h *Handler) Reject(err error) *wire.ResponseBatch {
	txID := uuid.NewString()
	h.logger.Warn("rejected undecodable request", logging.TxID(txID), logging.Error(err))
	h.engine.metrics.RecordTransaction(false, 0, 0)
	return abortedResponse(txID, 1, &failure{group: -1, err: wrapError(KindMalformedCommand, "", err)})
}

// ProcessQueries runs commands as one transaction and returns one response per
// group, ordered by group id. A non-empty batch must end with TxCommit; an empty
// batch commits nothing and succeeds without opening a transaction.
//
// Any failing command aborts the whole transaction: earlier mutations are rolled
// back, processing stops, and every group is reported as an error. The failing
// command's group carries the failure's kind; the others report KindAborted.
func (h *Handler) ProcessQueries(commands []*wire.Command, numGroups int) *wire.ResponseBatch {
	txID := uuid.NewString()
	logger := h.logger.With(logging.TxID(txID))
	if numGroups < 0 {
		numGroups = 0
	}

	if err := wire.ValidateBatch(&wire.Batch{NumGroups: numGroups, Commands: commands}); err != nil {
		logger.Warn("rejected malformed batch", logging.Error(err))
		h.engine.metrics.RecordTransaction(false, 0, 0)
		if numGroups > wire.MaxGroups(len(commands)) {
			numGroups = 1
		}
		return abortedResponse(txID, numGroups, &failure{group: -1, err: wrapError(KindMalformedCommand, "", err)})
	}
	if len(commands) == 0 {
		logger.Debug("empty batch")
		h.engine.metrics.RecordTransaction(true, 0, 0)
		return committedResponse(txID, make([][]*wire.CommandResponse, numGroups))
	}

	h.engine.mu.Lock()
	defer h.engine.mu.Unlock()
	start := time.Now()

	tx, err := h.engine.store.Begin()
	if err != nil {
		logger.Error("failed to open transaction", logging.Error(err))
		h.engine.metrics.RecordTransaction(false, time.Since(start), 0)
		return abortedResponse(txID, numGroups, &failure{group: -1, err: wrapError(KindStore, "Begin", err)})
	}
	defer func() {
		if tx.Active() {
			if rbErr := tx.Rollback(); rbErr != nil {
				logger.Error("rollback failed", logging.Error(rbErr))
			}
		}
	}()

	x := &execCtx{
		txID:   txID,
		store:  h.engine.store,
		tx:     tx,
		refs:   h.refs,
		logger: logger,
	}
	defer h.refs.Clear()

	groups := make([][]*wire.CommandResponse, numGroups)
	fail := h.run(x, commands, groups)

	references := x.refs.Len()
	defer func() {
		h.engine.metrics.UpdateStoreSize(x.store.NodeCount(), x.store.EdgeCount())
	}()

	if fail != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("rollback failed", logging.Error(rbErr))
		}
		h.engine.metrics.RecordTransaction(false, time.Since(start), references)
		kind := KindOf(fail.err)
		logger.Warn("transaction aborted",
			logging.GroupID(fail.group),
			logging.ErrorKind(kind.String()),
			logging.Error(fail.err),
			logging.Latency(time.Since(start)))
		return abortedResponse(txID, numGroups, fail)
	}

	h.engine.metrics.RecordTransaction(true, time.Since(start), references)
	logger.Info("transaction committed",
		logging.Count(len(commands)),
		logging.Int("references", references),
		logging.Latency(time.Since(start)))
	return committedResponse(txID, groups)
}

// run executes commands in order until one fails or the transaction ends
func (h *Handler) run(x *execCtx, commands []*wire.Command, groups [][]*wire.CommandResponse) *failure {
	for i, cmd := range commands {
		if cmd.Op == wire.OpTxCommit && i != len(commands)-1 {
			return &failure{group: cmd.GroupID, err: newError(KindMalformedCommand, cmd.Op.String(), "TxCommit must be the last command")}
		}

		resp, err := h.runCommand(x, cmd)
		h.engine.metrics.RecordCommand(cmd.Op.String(), err == nil)
		if err != nil {
			if resp == nil {
				resp = &wire.CommandResponse{Op: cmd.Op, GroupID: cmd.GroupID}
			}
			return &failure{group: cmd.GroupID, resp: resp, err: err}
		}
		groups[cmd.GroupID] = append(groups[cmd.GroupID], resp)
	}

	if !x.ended {
		last := commands[len(commands)-1]
		return &failure{group: last.GroupID, err: newError(KindMalformedCommand, "", "batch ended without TxCommit")}
	}
	return nil
}

// runCommand dispatches one command. Panics raised while evaluating it are
// reported as store errors.
func (h *Handler) runCommand(x *execCtx, cmd *wire.Command) (resp *wire.CommandResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp = nil
			err = &Error{Kind: KindStore, Op: cmd.Op.String(), Msg: fmt.Sprintf("panic: %v", r)}
		}
	}()

	x.logger.Debug("executing command",
		logging.Opcode(cmd.Op.String()),
		logging.GroupID(cmd.GroupID),
		logging.RefID(cmd.RefID))

	resp = &wire.CommandResponse{Op: cmd.Op, GroupID: cmd.GroupID}
	switch cmd.Op {
	case wire.OpTxBegin:
		if x.begun {
			return resp, newError(KindMalformedCommand, cmd.Op.String(), "transaction already begun")
		}
		x.begun = true
	case wire.OpTxCommit:
		if err := x.tx.Commit(); err != nil {
			return resp, wrapError(KindStore, cmd.Op.String(), err)
		}
		x.ended = true
	case wire.OpTxAbort:
		return resp, &Error{Kind: KindAborted, Op: cmd.Op.String(), Msg: "aborted by client"}
	case wire.OpAddNode:
		err = h.addNode(x, cmd, resp)
	case wire.OpAddEdge:
		err = h.addEdge(x, cmd, resp)
	case wire.OpQueryNode:
		err = h.queryNode(x, cmd, resp)
	default:
		err = newError(KindMalformedCommand, "", "unknown opcode %d", cmd.Op)
	}
	if err != nil {
		var qe *Error
		if e, ok := err.(*Error); ok {
			qe = e
		} else {
			qe = wrapError(KindStore, cmd.Op.String(), err)
		}
		if qe.Op == "" {
			qe.Op = cmd.Op.String()
		}
		if qe.Ref == 0 && cmd.RefID != 0 && qe.Kind != KindInvalidReference {
			qe.Ref = cmd.RefID
		}
		return resp, qe
	}
	return resp, nil
}

func (h *Handler) addNode(x *execCtx, cmd *wire.Command, resp *wire.CommandResponse) error {
	if cmd.RefID != 0 && x.refs.Has(cmd.RefID) {
		return &Error{Kind: KindMalformedCommand, Ref: cmd.RefID, Msg: "duplicate reference id"}
	}
	props, err := TranslateProperties(cmd.AddNode.Properties)
	if err != nil {
		return err
	}
	var labels []string
	if cmd.AddNode.Label != "" {
		labels = []string{cmd.AddNode.Label}
	}

	node, err := x.tx.CreateNode(labels, props)
	if err != nil {
		return wrapError(KindStore, "", err)
	}
	resp.Created = []uint64{node.ID}

	if cmd.RefID != 0 {
		return x.refs.PutNodes(cmd.RefID, NewSingletonSequence(node))
	}
	return nil
}

// addEdge connects every node of the source reference to every node of the
// destination reference
func (h *Handler) addEdge(x *execCtx, cmd *wire.Command, resp *wire.CommandResponse) error {
	ae := cmd.AddEdge
	if cmd.RefID != 0 && x.refs.Has(cmd.RefID) {
		return &Error{Kind: KindMalformedCommand, Ref: cmd.RefID, Msg: "duplicate reference id"}
	}
	props, err := TranslateProperties(ae.Properties)
	if err != nil {
		return err
	}

	srcs, err := x.referencedNodes(ae.Src)
	if err != nil {
		return err
	}
	dsts, err := x.referencedNodes(ae.Dst)
	if err != nil {
		return err
	}

	edges := make([]*storage.Edge, 0, len(srcs)*len(dsts))
	for _, src := range srcs {
		for _, dst := range dsts {
			edge, err := x.tx.CreateEdge(src.ID, dst.ID, ae.Label, props)
			if err != nil {
				return wrapError(KindStore, "", err)
			}
			edges = append(edges, edge)
			resp.Created = append(resp.Created, edge.ID)
		}
	}

	if cmd.RefID != 0 {
		return x.refs.PutEdges(cmd.RefID, edges)
	}
	return nil
}

// referencedNodes snapshots every node of a cached reference
func (x *execCtx) referencedNodes(ref int) ([]*storage.Node, error) {
	seq, err := x.refs.Nodes(ref)
	if err != nil {
		return nil, err
	}
	var nodes []*storage.Node
	for ; seq.Valid(); seq.Advance() {
		n, err := seq.Current()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	if err := seq.Err(); err != nil {
		return nil, wrapError(KindStore, "", err)
	}
	seq.Reset()
	return nodes, nil
}

func (h *Handler) queryNode(x *execCtx, cmd *wire.Command, resp *wire.CommandResponse) error {
	qn := cmd.QueryNode
	if cmd.RefID != 0 && x.refs.Has(cmd.RefID) {
		return &Error{Kind: KindMalformedCommand, Ref: cmd.RefID, Msg: "duplicate reference id"}
	}

	start, err := x.resolveStart(qn)
	if err != nil {
		return err
	}

	// result is what gets projected and, with a reference id, cached
	result := start
	var seq Sequence = start
	if qn.Link != nil {
		nq, err := translateLink(qn.Link)
		if err != nil {
			return err
		}
		expansion := NewNeighborIterator(x.store, start, nq)
		seq = expansion
		result = nil
		if cmd.RefID != 0 || qn.Result.SortKey != "" {
			result = NewNodeSequence(&sequenceSource{seq: expansion})
			seq = result
		}
	}

	if qn.Result.SortKey != "" {
		op := logging.StartTimer(x.logger, "sorted query result", logging.RefID(cmd.RefID))
		if err := result.SortBy(qn.Result.SortKey); err != nil {
			return wrapError(KindStore, "", err)
		}
		op.End(logging.DebugLevel, logging.Count(result.Len()))
	}

	proj, err := Project(seq, h.engine.limitFor(qn.Result))
	if err != nil {
		return err
	}
	if result != nil {
		result.Reset()
	}
	resp.Matched = proj.Matched
	resp.Returned = proj.Returned
	resp.Records = proj.Records
	resp.Aggregate = proj.Aggregate
	h.engine.metrics.RecordProjection(proj.Matched, proj.Returned)

	if cmd.RefID != 0 {
		return x.refs.PutNodes(cmd.RefID, result)
	}
	return nil
}

// resolveStart returns the cached sequence of the source reference, or opens a
// fresh scan
func (x *execCtx) resolveStart(qn *wire.QueryNode) (*NodeSequence, error) {
	if qn.SourceRef != 0 {
		return x.refs.Nodes(qn.SourceRef)
	}
	preds, err := TranslatePredicates(qn.Predicates)
	if err != nil {
		return nil, err
	}
	it := x.store.FindNodes(storage.NodeQuery{Label: qn.Label, Predicates: preds, Or: qn.Or})
	return NewNodeSequence(it), nil
}

func translateLink(link *wire.Link) (storage.NeighborQuery, error) {
	dir, err := translateDirection(link.Direction)
	if err != nil {
		return storage.NeighborQuery{}, err
	}
	preds, err := TranslatePredicates(link.Predicates)
	if err != nil {
		return storage.NeighborQuery{}, err
	}
	return storage.NeighborQuery{
		Direction:  dir,
		EdgeType:   link.EdgeLabel,
		Label:      link.Label,
		Predicates: preds,
		Or:         link.Or,
	}, nil
}

// sequenceSource adapts a positioned Sequence to the single-pass
// storage.NodeIterator contract so it can be memoized by a NodeSequence
type sequenceSource struct {
	seq     Sequence
	started bool
	cur     *storage.Node
}

func (s *sequenceSource) Next() bool {
	if s.started {
		s.seq.Advance()
	}
	s.started = true
	if !s.seq.Valid() {
		s.cur = nil
		return false
	}
	s.cur, _ = s.seq.Current()
	return true
}

func (s *sequenceSource) Node() *storage.Node { return s.cur }
func (s *sequenceSource) Err() error          { return s.seq.Err() }
