package api

import (
	"github.com/Iron-Ham/mailcd/internal/env"
	"github.com/Iron-Ham/mailcd/internal/store"
)

// Default serves every operation from a local store and a workspace's
// environment configs.
type Default struct {
	store   *store.Store
	configs *env.Configs
}

var _ Backend = (*Default)(nil)

// NewDefault creates the default backend.
func NewDefault(s *store.Store, configs *env.Configs) *Default {
	return &Default{store: s, configs: configs}
}

// Add implements Backend with store.Store.Add.
func (d *Default) Add(storageID, sourcePath string) (string, error) {
	return d.store.Add(storageID, sourcePath)
}

// List implements Backend with store.Store.List.
func (d *Default) List(storageID string) ([]string, error) {
	return d.store.List(storageID)
}

// Label implements Backend with store.Store.Label.
func (d *Default) Label(storageID, hash, label string) error {
	return d.store.Label(storageID, hash, label)
}

// GetLabels implements Backend with store.Store.GetLabels.
func (d *Default) GetLabels(storageID, hash string) ([]string, error) {
	return d.store.GetLabels(storageID, hash)
}

// Find implements Backend with store.Store.Find.
func (d *Default) Find(storageID string, labels ...string) ([]string, error) {
	return d.store.Find(storageID, labels...)
}

// Matches implements Backend with store.Store.Matches.
func (d *Default) Matches(storageID, prefix string) ([]string, error) {
	return d.store.Matches(storageID, prefix)
}

// ResolvePartialHash implements Backend with store.Store.ResolvePartialHash.
func (d *Default) ResolvePartialHash(storageID, prefix string) (string, error) {
	return d.store.ResolvePartialHash(storageID, prefix)
}

// Contents implements Backend with store.Store.Contents.
func (d *Default) Contents(storageID, hash string) ([]store.Entry, error) {
	return d.store.Contents(storageID, hash)
}

// Download implements Backend with store.Store.Download.
func (d *Default) Download(storageID, hash, targetDir string) error {
	return d.store.Download(storageID, hash, targetDir)
}

// Variables implements Backend with env.Configs.Variables.
func (d *Default) Variables(config string) (*env.Vars, error) {
	return d.configs.Variables(config)
}

// Environments implements Backend with env.Configs.List.
func (d *Default) Environments() ([]string, error) {
	return d.configs.List()
}

// SelectedEnvironment implements Backend with env.Configs.Selected.
func (d *Default) SelectedEnvironment() (string, bool) {
	return d.configs.Selected()
}

// CreateEnvironment implements Backend with env.Configs.Create.
func (d *Default) CreateEnvironment(name string) error {
	return d.configs.Create(name)
}

// DeleteEnvironment implements Backend with env.Configs.Delete.
func (d *Default) DeleteEnvironment(name string) error {
	return d.configs.Delete(name)
}

// SelectEnvironment implements Backend with env.Configs.Select.
func (d *Default) SelectEnvironment(name string) error {
	return d.configs.Select(name)
}

// SetVariable implements Backend with env.Configs.Set.
func (d *Default) SetVariable(config, variable, value string) error {
	return d.configs.Set(config, variable, value)
}

// UnsetVariable implements Backend with env.Configs.Unset.
func (d *Default) UnsetVariable(config, variable string) error {
	return d.configs.Unset(config, variable)
}
