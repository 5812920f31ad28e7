// Package eventstream is the client-side event stream consumer: it tracks
// the last event id the client has adopted and detects gaps in incoming
// batches, requesting a resync rather than silently skipping missed
// entries.
package eventstream

import "zonecore/server/internal/eventlog"

// Batch is the subset of a proto.EventStreamBatch this client needs;
// callers copy FromEventID, ToEventID and Events over from a decoded
// proto.EventStreamBatch, whose field names match.
type Batch struct {
	FromEventID uint64
	ToEventID   uint64
	Events      []eventlog.Entry
}

// ResyncRequester asks the server for a fresh batch starting after
// sinceEventID (an event_stream_resync_request).
type ResyncRequester func(sinceEventID uint64)

// Client tracks one player's event-stream adoption cursor. Not safe for
// concurrent use; a client owns exactly one consumer goroutine.
type Client struct {
	haveBaseline   bool
	baseline       uint64
	lastEventID    uint64
	resyncInFlight bool
	pending        []eventlog.Entry
}

// NewClient constructs an empty Client.
func NewClient() *Client {
	return &Client{}
}

// ReceiveBatch processes one incoming batch. When the batch
// opens a gap ahead of the client's baseline, it asks requestResync for a
// fresh batch (unless one is already in flight) and returns without
// adopting any of the batch's entries.
func (c *Client) ReceiveBatch(batch Batch, requestResync ResyncRequester) {
	if !c.haveBaseline {
		c.baseline = subOne(batch.FromEventID)
		c.haveBaseline = true
	}

	if batch.FromEventID > c.baseline+1 {
		if !c.resyncInFlight && requestResync != nil {
			c.resyncInFlight = true
			requestResync(c.baseline)
		}
		return
	}

	c.resyncInFlight = false

	for _, e := range batch.Events {
		if e.Seq > c.baseline {
			c.pending = append(c.pending, e)
		}
	}
	c.lastEventID = batch.ToEventID
	// The baseline advances to this batch's toEventId rather than
	// fromEventId-1: across multi-event batches, a contiguous follow-up
	// batch's fromEventId is
	// previous.toEventId+1, which is > (previous.fromEventId-1)+1 whenever
	// a batch carries more than one event, so a baseline frozen at
	// fromEventId-1 would flag every such follow-up as a false gap. Tracking
	// toEventId keeps the gap check correct for a batch of any size; the
	// two formulations agree whenever batches carry exactly one event.
	if batch.ToEventID > c.baseline {
		c.baseline = batch.ToEventID
	}
}

func subOne(v uint64) uint64 {
	if v == 0 {
		return 0
	}
	return v - 1
}

// LastEventID returns the highest event id the client has adopted.
func (c *Client) LastEventID() uint64 { return c.lastEventID }

// ResyncInFlight reports whether a resync request is currently outstanding.
func (c *Client) ResyncInFlight() bool { return c.resyncInFlight }

// DrainPending returns and clears every entry queued since the last call.
func (c *Client) DrainPending() []eventlog.Entry {
	if len(c.pending) == 0 {
		return nil
	}
	drained := c.pending
	c.pending = nil
	return drained
}
