package api

import (
	"github.com/Iron-Ham/mailcd/internal/env"
	"github.com/Iron-Ham/mailcd/internal/store"
)

// API routes each operation to the override when it provides one.
type API struct {
	def      Backend
	override any
}

var _ Backend = (*API)(nil)

// New returns an API over def. override may be nil.
func New(def Backend, override any) *API {
	return &API{def: def, override: override}
}

// HasOverride reports whether an override was installed.
func (a *API) HasOverride() bool {
	return a.override != nil
}

// Add implements Backend, using the override when it implements StoreAdder.
func (a *API) Add(storageID, sourcePath string) (string, error) {
	if o, ok := a.override.(StoreAdder); ok {
		return o.Add(storageID, sourcePath)
	}
	return a.def.Add(storageID, sourcePath)
}

// List implements Backend, using the override when it implements StoreLister.
func (a *API) List(storageID string) ([]string, error) {
	if o, ok := a.override.(StoreLister); ok {
		return o.List(storageID)
	}
	return a.def.List(storageID)
}

// Label implements Backend, using the override when it implements StoreLabeler.
func (a *API) Label(storageID, hash, label string) error {
	if o, ok := a.override.(StoreLabeler); ok {
		return o.Label(storageID, hash, label)
	}
	return a.def.Label(storageID, hash, label)
}

// GetLabels implements Backend, using the override when it implements StoreLabelGetter.
func (a *API) GetLabels(storageID, hash string) ([]string, error) {
	if o, ok := a.override.(StoreLabelGetter); ok {
		return o.GetLabels(storageID, hash)
	}
	return a.def.GetLabels(storageID, hash)
}

// Find implements Backend, using the override when it implements StoreFinder.
func (a *API) Find(storageID string, labels ...string) ([]string, error) {
	if o, ok := a.override.(StoreFinder); ok {
		return o.Find(storageID, labels...)
	}
	return a.def.Find(storageID, labels...)
}

// Matches implements Backend, using the override when it implements StoreMatcher.
func (a *API) Matches(storageID, prefix string) ([]string, error) {
	if o, ok := a.override.(StoreMatcher); ok {
		return o.Matches(storageID, prefix)
	}
	return a.def.Matches(storageID, prefix)
}

// ResolvePartialHash implements Backend, using the override when it implements StoreResolver.
func (a *API) ResolvePartialHash(storageID, prefix string) (string, error) {
	if o, ok := a.override.(StoreResolver); ok {
		return o.ResolvePartialHash(storageID, prefix)
	}
	return a.def.ResolvePartialHash(storageID, prefix)
}

// Contents implements Backend, using the override when it implements StoreContents.
func (a *API) Contents(storageID, hash string) ([]store.Entry, error) {
	if o, ok := a.override.(StoreContents); ok {
		return o.Contents(storageID, hash)
	}
	return a.def.Contents(storageID, hash)
}

// Download implements Backend, using the override when it implements StoreDownloader.
func (a *API) Download(storageID, hash, targetDir string) error {
	if o, ok := a.override.(StoreDownloader); ok {
		return o.Download(storageID, hash, targetDir)
	}
	return a.def.Download(storageID, hash, targetDir)
}

// Variables implements Backend, using the override when it implements EnvVariables.
func (a *API) Variables(config string) (*env.Vars, error) {
	if o, ok := a.override.(EnvVariables); ok {
		return o.Variables(config)
	}
	return a.def.Variables(config)
}

// Environments implements Backend, using the override when it implements EnvLister.
func (a *API) Environments() ([]string, error) {
	if o, ok := a.override.(EnvLister); ok {
		return o.Environments()
	}
	return a.def.Environments()
}

// SelectedEnvironment implements Backend, using the override when it implements EnvSelection.
func (a *API) SelectedEnvironment() (string, bool) {
	if o, ok := a.override.(EnvSelection); ok {
		return o.SelectedEnvironment()
	}
	return a.def.SelectedEnvironment()
}

// CreateEnvironment implements Backend, using the override when it implements EnvCreator.
func (a *API) CreateEnvironment(name string) error {
	if o, ok := a.override.(EnvCreator); ok {
		return o.CreateEnvironment(name)
	}
	return a.def.CreateEnvironment(name)
}

// DeleteEnvironment implements Backend, using the override when it implements EnvDeleter.
func (a *API) DeleteEnvironment(name string) error {
	if o, ok := a.override.(EnvDeleter); ok {
		return o.DeleteEnvironment(name)
	}
	return a.def.DeleteEnvironment(name)
}

// SelectEnvironment implements Backend, using the override when it implements EnvSelector.
func (a *API) SelectEnvironment(name string) error {
	if o, ok := a.override.(EnvSelector); ok {
		return o.SelectEnvironment(name)
	}
	return a.def.SelectEnvironment(name)
}

// SetVariable implements Backend, using the override when it implements EnvSetter.
func (a *API) SetVariable(config, variable, value string) error {
	if o, ok := a.override.(EnvSetter); ok {
		return o.SetVariable(config, variable, value)
	}
	return a.def.SetVariable(config, variable, value)
}

// UnsetVariable implements Backend, using the override when it implements EnvUnsetter.
func (a *API) UnsetVariable(config, variable string) error {
	if o, ok := a.override.(EnvUnsetter); ok {
		return o.UnsetVariable(config, variable)
	}
	return a.def.UnsetVariable(config, variable)
}
