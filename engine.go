package facegate

import (
	"github.com/securefs/facegate/biometric"
	"github.com/securefs/facegate/credential"
)

// Engine composes the credential verifier, the template store, the
// verification session and the attempt ledger into the authentication gate.
// It holds no per-call state: concurrent calls for different identities are
// fully independent, and each call owns its own session counters and
// deadline.
type Engine struct {
	config     Config
	identities IdentityProvider
	hasher     *credential.Hasher
	matcher    *biometric.Matcher
	templates  *templateStore
	ledger     Ledger
	grants     *grantSigner
	audit      *auditDispatcher
	metrics    *Metrics

	// decoyDigest absorbs a Verify call for unknown identities so the
	// credential path costs the same whether the name exists or not.
	decoyDigest string
}

// Close drains the audit dispatcher. The engine is unusable afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events the dispatcher discarded.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}
