package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Iron-Ham/mailcd/internal/errors"
	"github.com/Iron-Ham/mailcd/internal/pipeline"
)

// fetchInbox resolves every slot to exactly one package and then downloads
// them all under root/<slot>/<hash>. Nothing is downloaded when any slot
// fails to resolve.
func (o *Orchestrator) fetchInbox(ctx context.Context, stage string, slots pipeline.Inbox, root string) ([]Package, error) {
	packages := make([]Package, 0, len(slots))
	for _, slot := range slots {
		hash, err := o.resolveSlot(slot)
		if err != nil {
			return nil, err
		}
		dir := filepath.Join(root, slot.Name, hash)
		packages = append(packages, Package{
			Slot:      slot.Name,
			StorageID: slot.StorageID(),
			Hash:      hash,
			Dir:       dir,
			RelPath:   o.layout.Rel(dir),
		})
	}

	for _, pkg := range packages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := o.backend.Download(pkg.StorageID, pkg.Hash, pkg.Dir); err != nil {
			return nil, err
		}
		o.logger.WithStage(stage).WithStorage(pkg.StorageID).Info("package downloaded", "hash", pkg.Hash, "path", pkg.RelPath)
		o.observer.PackageDownloaded(stage, pkg)
	}
	return packages, nil
}

func (o *Orchestrator) resolveSlot(slot pipeline.Slot) (string, error) {
	storageID := slot.StorageID()
	labels := []string(slot.Tag)

	matches, err := o.backend.Find(storageID, labels...)
	if err != nil {
		return "", err
	}
	switch len(matches) {
	case 0:
		return "", errors.NewValidationError(fmt.Sprintf("no package in '%s' carries labels [%s]", storageID, strings.Join(labels, ", "))).
			WithField("inbox." + slot.Name)
	case 1:
		return matches[0], nil
	default:
		return "", errors.NewAmbiguousMatchError(storageID, strings.Join(labels, ","), matches)
	}
}
