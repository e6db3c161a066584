package synctree

import (
	"sync"
	"time"

	"github.com/nodetree/syncdb/pkg/node"
	"github.com/nodetree/syncdb/pkg/pathkey"
	"github.com/nodetree/syncdb/pkg/query"
)

// LoopbackListenProvider is an in-process ListenProvider standing in for
// a real backend connection: it keeps its own copy of the tree and, after
// Delay, answers each StartListening with a server overwrite of that copy
// at the listened path followed by a listen-complete — enough to exercise
// the full registration/listen/event-emission path without a network. It
// does not see the writes a SyncTree applies; only Seed changes its copy.
//
// Set Tree before any registration is added; the loopback calls back into
// it on its own goroutine per pending echo, so Tree's owner must be
// prepared to receive SyncTree calls from outside its own driving loop
// (a real caller would hand these off to its single execution context).
type LoopbackListenProvider struct {
	Tree  *SyncTree
	Delay time.Duration

	mu   sync.Mutex
	data node.Node
}

// NewLoopbackListenProvider builds a provider seeded with root.
func NewLoopbackListenProvider(root node.Node, delay time.Duration) *LoopbackListenProvider {
	return &LoopbackListenProvider{data: root, Delay: delay}
}

// Seed replaces the provider's backing tree at path, as if a remote write
// landed there out of band.
func (p *LoopbackListenProvider) Seed(path pathkey.Path, n node.Node) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data = node.SetAtPath(p.data, path.Components(), n)
}

func (p *LoopbackListenProvider) snapshot(path pathkey.Path) node.Node {
	p.mu.Lock()
	defer p.mu.Unlock()
	return node.GetAtPath(p.data, path.Components())
}

// StartListening immediately reports success and schedules a one-shot echo
// of the provider's current data at q.Path after Delay.
func (p *LoopbackListenProvider) StartListening(q query.Query, tag int64, hasTag bool, hashFn func() string, onComplete func(ok bool, reason error)) {
	onComplete(true, nil)
	time.AfterFunc(p.Delay, func() {
		if p.Tree == nil {
			return
		}
		snap := p.snapshot(q.Path)
		if hasTag {
			p.Tree.TaggedServerOverwrite(tag, q.Path, snap, time.Now().UnixNano())
			p.Tree.TaggedServerListenComplete(tag, q.Path, time.Now().UnixNano())
			return
		}
		p.Tree.ServerOverwrite(q.Path, snap, time.Now().UnixNano())
		p.Tree.ServerListenComplete(q.Path, time.Now().UnixNano())
	})
}

// StopListening is a no-op: the loopback has no outstanding backend
// resource to release.
func (p *LoopbackListenProvider) StopListening(q query.Query, tag int64, hasTag bool) {}
