package engine

import (
	"github.com/rs/zerolog"

	"github.com/cuemby/hostd/pkg/datastore"
	"github.com/cuemby/hostd/pkg/log"
	"github.com/cuemby/hostd/pkg/metrics"
	"github.com/cuemby/hostd/pkg/osutils"
	"github.com/cuemby/hostd/pkg/subsystem"
)

// Engine drives a host through the servicing flows of §4.2 over the
// fixed subsystem registry. It is the only component allowed to mutate
// the datastore (§4.5); subsystems never touch it directly.
type Engine struct {
	store    *datastore.Store
	registry []subsystem.Subsystem
	mounter  osutils.Mounter
	repart   osutils.Repartitioner
	raid     osutils.RaidAssembler
	crypt    osutils.CryptManager
	verity   osutils.VerityManager
	mkfs     osutils.FilesystemFormatter
	recorder *metrics.Recorder
	logger   zerolog.Logger
}

// Option customizes a newly constructed Engine.
type Option func(*Engine)

// WithRegistry overrides the default ten-subsystem registry, used by
// tests to substitute fakes while keeping fixed ordering semantics.
func WithRegistry(registry []subsystem.Subsystem) Option {
	return func(e *Engine) { e.registry = registry }
}

// WithMounter overrides the default osutils.Mount, used by tests to avoid
// touching the real kernel mount table.
func WithMounter(mounter osutils.Mounter) Option {
	return func(e *Engine) { e.mounter = mounter }
}

// WithRecorder attaches a metrics recorder; nil (the default) disables
// phase metrics without changing behavior.
func WithRecorder(recorder *metrics.Recorder) Option {
	return func(e *Engine) { e.recorder = recorder }
}

// WithBlockDeviceTools overrides the default osutils-backed
// partitioning/RAID/crypt/verity/filesystem tools, used by tests to
// substitute fakes instead of shelling out to real system tooling.
func WithBlockDeviceTools(repart osutils.Repartitioner, raid osutils.RaidAssembler, crypt osutils.CryptManager, verity osutils.VerityManager, mkfs osutils.FilesystemFormatter) Option {
	return func(e *Engine) {
		e.repart = repart
		e.raid = raid
		e.crypt = crypt
		e.verity = verity
		e.mkfs = mkfs
	}
}

// New builds an Engine bound to store, with the default subsystem
// registry and real mount tooling unless overridden.
func New(store *datastore.Store, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		registry: DefaultRegistry(),
		mounter:  osutils.Mount{},
		repart:   osutils.Sfdisk{},
		raid:     osutils.Mdadm{},
		crypt:    osutils.Cryptsetup{},
		verity:   osutils.Veritysetup{},
		mkfs:     osutils.Mkfs{},
		logger:   log.WithComponent("engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}
