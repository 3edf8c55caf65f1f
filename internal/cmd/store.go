package cmd

import (
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/mailcd/internal/display"
	"github.com/Iron-Ham/mailcd/internal/errors"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Manage packages in the artifact store",
	Long: `Manage packages in the artifact store.

Packages are addressed as STORAGE_ID/HASH, where HASH may be any unique
prefix of the package hash.`,
}

var storeAddCmd = &cobra.Command{
	Use:   "add <storage-id> <path>",
	Short: "Add a directory or zip file to the store",
	Long: `Add a package (a directory or a zip file) under a storage id.

Examples:
  mb store add MYPACKAGE ./mypackage_v2.zip
  mb store add MYPACKAGE ./mypackage_v3/`,
	Args: cobra.ExactArgs(2),
	RunE: runStoreAdd,
}

var storeLsCmd = &cobra.Command{
	Use:   "ls [storage-id[/hash]]",
	Short: "List storage ids, packages or the contents of one package",
	Long: `Navigate the store.

Without arguments every storage id is listed. With a storage id its
packages and their labels are listed. With STORAGE_ID/HASH the labels and
files of that package are shown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStoreLs,
}

var storeGetCmd = &cobra.Command{
	Use:   "get <storage-id[/hash]> [labels...]",
	Short: "Download a package into the workspace inbox",
	Long: `Download a package into the workspace inbox, selected by hash prefix or
by labels. Every label must match and exactly one package may carry them.

Examples:
  mb store get MYPACKAGE/2de
  mb store get MYPACKAGE stable linux`,
	Args: cobra.MinimumNArgs(1),
	RunE: runStoreGet,
}

var storeLabelCmd = &cobra.Command{
	Use:   "label <storage-id/hash> <label>",
	Short: "Attach a label to a package",
	Args:  cobra.ExactArgs(2),
	RunE:  runStoreLabel,
}

var storeLsLabel string

func init() {
	rootCmd.AddCommand(storeCmd)
	storeCmd.AddCommand(storeAddCmd)
	storeCmd.AddCommand(storeLsCmd)
	storeCmd.AddCommand(storeGetCmd)
	storeCmd.AddCommand(storeLabelCmd)

	storeLsCmd.Flags().StringVar(&storeLsLabel, "label", "", "attach a label to the listed package")
}

// splitRef splits STORAGE_ID[/HASH].
func splitRef(ref string) (storageID, hash string, err error) {
	storageID, hash, _ = strings.Cut(ref, "/")
	if storageID == "" || strings.Contains(hash, "/") {
		return "", "", errors.NewValidationError("package reference must be STORAGE_ID[/HASH]").WithValue(ref)
	}
	return storageID, hash, nil
}

func runStoreAdd(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	hash, err := a.backend.Add(args[0], args[1])
	if err != nil {
		return err
	}
	a.printf("Package added under store '%s' (%s)\n", args[0], hash)
	return nil
}

func runStoreLs(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(args) == 0 {
		ids, err := a.backend.List("")
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			a.printf("Nothing currently stored\n")
		}
		for _, id := range ids {
			a.printf("%s\n", id)
		}
		return nil
	}

	storageID, prefix, err := splitRef(args[0])
	if err != nil {
		return err
	}
	storageID = strings.ToUpper(storageID)

	if prefix == "" {
		hashes, err := a.backend.List(storageID)
		if err != nil {
			return err
		}
		if len(hashes) == 0 {
			a.printf("%s - No entries\n", storageID)
		}
		for _, h := range hashes {
			labels, err := a.backend.GetLabels(storageID, h)
			if err != nil {
				return err
			}
			a.printf("%s\t%s\n", h, strings.Join(labels, ","))
		}
		return nil
	}

	hash, err := a.backend.ResolvePartialHash(storageID, prefix)
	if err != nil {
		return err
	}
	if storeLsLabel != "" {
		err := a.backend.Label(storageID, hash, storeLsLabel)
		switch {
		case err == nil:
			a.printf("Label '%s' added\n\n", storeLsLabel)
		case errors.Is(err, errors.ErrLabelExists):
		default:
			return err
		}
	}
	return printPackage(a, storageID, hash)
}

func printPackage(a *app, storageID, hash string) error {
	labels, err := a.backend.GetLabels(storageID, hash)
	if err != nil {
		return err
	}
	entries, err := a.backend.Contents(storageID, hash)
	if err != nil {
		return err
	}

	a.printf("Storage ID:   %s\n", storageID)
	a.printf("Package Hash: %s\n", hash)
	if len(labels) == 0 {
		a.printf("Labels:       (none)\n")
	} else {
		a.printf("Labels:       %s\n", strings.Join(labels, ", "))
	}

	a.printf("\nContents:\n")
	if len(entries) == 0 {
		a.printf("  (empty)\n")
		return nil
	}
	width := len("NAME")
	for _, e := range entries {
		width = max(width, len(e.Name))
	}
	a.printf("  %-*s  %10s  %10s  %s\n", width, "NAME", "SIZE", "PACKED", "MODIFIED")
	for _, e := range entries {
		a.printf("  %-*s  %10d  %10d  %s\n", width, e.Name, e.Size, e.CompressedSize, e.Modified.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runStoreGet(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	storageID, prefix, err := splitRef(args[0])
	if err != nil {
		return err
	}
	labels := args[1:]

	var hash string
	switch {
	case prefix != "":
		hash, err = a.backend.ResolvePartialHash(storageID, prefix)
		if err != nil {
			return err
		}
	case len(labels) > 0:
		matches, err := a.backend.Find(storageID, labels...)
		if err != nil {
			return err
		}
		switch len(matches) {
		case 0:
			return errors.NewValidationError("no package carries every label").
				WithField(storageID).WithValue(strings.Join(labels, ","))
		case 1:
			hash = matches[0]
		default:
			return errors.NewAmbiguousMatchError(storageID, strings.Join(labels, ","), matches)
		}
	default:
		return errors.NewValidationError("specify a package hash or at least one label").WithValue(args[0])
	}

	target := filepath.Join(a.layout.InboxDir(), storageID, hash)
	if err := a.backend.Download(storageID, hash, target); err != nil {
		return err
	}
	a.printf("Package downloaded: '%s' (%s)\n", a.layout.Rel(target), display.ShortHash(hash))
	return nil
}

func runStoreLabel(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	storageID, prefix, err := splitRef(args[0])
	if err != nil {
		return err
	}
	if prefix == "" {
		return errors.NewValidationError("label needs a package hash").WithValue(args[0])
	}
	hash, err := a.backend.ResolvePartialHash(storageID, prefix)
	if err != nil {
		return err
	}
	err = a.backend.Label(storageID, hash, args[1])
	switch {
	case errors.Is(err, errors.ErrLabelExists):
		a.printf("Label '%s' already on %s/%s\n", args[1], storageID, display.ShortHash(hash))
		return nil
	case err != nil:
		return err
	}
	a.printf("Label '%s' added to %s/%s\n", args[1], storageID, display.ShortHash(hash))
	return nil
}
