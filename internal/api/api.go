// Package api is the boundary between the mb commands and the store and
// environment implementations.
//
// A [Default] backend serves every operation from the local artifact store
// and the workspace environment configs. An override value may replace any
// subset of operations: each operation is routed to the override when it
// implements that operation's single-method interface (for example
// [StoreAdder]) and to the default otherwise.
package api

import (
	"github.com/Iron-Ham/mailcd/internal/env"
	"github.com/Iron-Ham/mailcd/internal/store"
)

// Backend is every operation the commands and the orchestrator use.
type Backend interface {
	Add(storageID, sourcePath string) (string, error)
	List(storageID string) ([]string, error)
	Label(storageID, hash, label string) error
	GetLabels(storageID, hash string) ([]string, error)
	Find(storageID string, labels ...string) ([]string, error)
	Matches(storageID, prefix string) ([]string, error)
	ResolvePartialHash(storageID, prefix string) (string, error)
	Contents(storageID, hash string) ([]store.Entry, error)
	Download(storageID, hash, targetDir string) error

	Variables(config string) (*env.Vars, error)
	Environments() ([]string, error)
	SelectedEnvironment() (string, bool)
	CreateEnvironment(name string) error
	DeleteEnvironment(name string) error
	SelectEnvironment(name string) error
	SetVariable(config, variable, value string) error
	UnsetVariable(config, variable string) error
}

// Single-method interfaces an override may implement.
type (
	StoreAdder interface {
		Add(storageID, sourcePath string) (string, error)
	}
	StoreLister interface {
		List(storageID string) ([]string, error)
	}
	StoreLabeler interface {
		Label(storageID, hash, label string) error
	}
	StoreLabelGetter interface {
		GetLabels(storageID, hash string) ([]string, error)
	}
	StoreFinder interface {
		Find(storageID string, labels ...string) ([]string, error)
	}
	StoreMatcher interface {
		Matches(storageID, prefix string) ([]string, error)
	}
	StoreResolver interface {
		ResolvePartialHash(storageID, prefix string) (string, error)
	}
	StoreContents interface {
		Contents(storageID, hash string) ([]store.Entry, error)
	}
	StoreDownloader interface {
		Download(storageID, hash, targetDir string) error
	}
	EnvVariables interface {
		Variables(config string) (*env.Vars, error)
	}
	EnvLister interface {
		Environments() ([]string, error)
	}
	EnvSelection interface {
		SelectedEnvironment() (string, bool)
	}
	EnvCreator interface {
		CreateEnvironment(name string) error
	}
	EnvDeleter interface {
		DeleteEnvironment(name string) error
	}
	EnvSelector interface {
		SelectEnvironment(name string) error
	}
	EnvSetter interface {
		SetVariable(config, variable, value string) error
	}
	EnvUnsetter interface {
		UnsetVariable(config, variable string) error
	}
)
