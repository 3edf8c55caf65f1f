package orchestrator

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/Iron-Ham/mailcd/internal/pipeline"
)

// publish stages every publication of outbox under root/<StorageID> and adds
// each non-empty staging directory to the store.
func (o *Orchestrator) publish(ctx context.Context, stage string, outbox pipeline.Outbox, root string) ([]Published, error) {
	var published []Published
	for _, pub := range outbox {
		if err := ctx.Err(); err != nil {
			return published, err
		}
		dir := filepath.Join(root, pub.StorageID)
		files, err := o.stage(stage, pub, dir)
		if err != nil {
			return published, err
		}
		if len(files) == 0 {
			o.observer.Notice(stage, fmt.Sprintf("nothing to publish for '%s', skipped", pub.StorageID))
			o.logger.WithStage(stage).WithStorage(pub.StorageID).Warn("outbox empty, skipped")
			continue
		}

		hash, err := o.backend.Add(pub.StorageID, dir)
		if err != nil {
			return published, err
		}
		p := Published{StorageID: pub.StorageID, Hash: hash, Files: files}
		published = append(published, p)
		o.observer.PackagePublished(stage, p)
	}
	return published, nil
}

// stage copies the workspace files matched by pub's rules into dir and
// returns their paths relative to dir.
func (o *Orchestrator) stage(stage string, pub pipeline.Publication, dir string) ([]string, error) {
	var staged []string
	seen := make(map[string]string)
	for _, rule := range pub.Rules {
		matches, err := o.layout.Glob(rule.Source, false)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			o.observer.Notice(stage, fmt.Sprintf("rule '%s' matched no files", rule))
		}

		for _, rel := range matches {
			dest := path.Join(rule.DestDir(), path.Base(rel))
			if prev, ok := seen[dest]; ok && prev != rel {
				o.observer.Notice(stage, fmt.Sprintf("'%s' replaces '%s' at %s/%s", rel, prev, pub.StorageID, dest))
			} else if !ok {
				staged = append(staged, dest)
			}
			seen[dest] = rel

			src := filepath.Join(o.layout.Workspace(), filepath.FromSlash(rel))
			if err := copyFile(src, filepath.Join(dir, filepath.FromSlash(dest))); err != nil {
				return nil, fmt.Errorf("stage %s for %s: %w", rel, pub.StorageID, err)
			}
		}
	}
	return staged, nil
}

func copyFile(src, dest string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
