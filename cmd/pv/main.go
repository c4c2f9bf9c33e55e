package main

import (
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"os"
	"os/signal"
	"path"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"pinvault/internal/app"
	"pinvault/internal/config"
	"pinvault/internal/pv"
)

var (
	verbose      bool
	allowRecover bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config, asks for the PIN and unlocks the vault. The
// caller must defer app.Close().
func newApp(ctx context.Context) (*app.PVApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	pin, err := readPIN()
	if err != nil {
		return nil, err
	}

	stop := startSpinner("Unlocking vault...")
	a, err := app.Unlock(ctx, cfg, pin, app.UnlockOptions{Verbose: verbose, AllowRecovery: allowRecover})
	if err != nil {
		stop(failMark + " Unlock failed\n")
		if errors.Is(err, app.ErrIndexUnreadable) {
			return nil, fmt.Errorf("%w\nrerun with --recover to start from an empty index (the unreadable one is replaced on the next change)", err)
		}
		return nil, fmt.Errorf("unlocking vault: %w", err)
	}
	stop(okMark + " Vault unlocked\n")

	if rec := a.Recovered(); rec != nil {
		fmt.Fprintln(os.Stderr, color.YellowString("! index was unreadable, starting empty: %v", rec))
	}
	return a, nil
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func printItem(a *app.PVApp, it *pv.Item, fullPath bool) {
	name := it.Name
	if fullPath {
		name = a.PathOf(it.ID)
	}
	if it.IsFolder() {
		name = color.CyanString(name + "/")
	}
	if it.Deleted {
		name = color.New(color.Faint).Sprint(name + " (deleted)")
	}
	size := ""
	if !it.IsFolder() {
		size = formatSize(it.Size)
	}
	fmt.Printf("%-9s %s  %10s  %s\n", it.Kind, it.ModifiedAt.Local().Format("2006-01-02 15:04"), size, name)
}

var rootCmd = &cobra.Command{
	Use:          "pv",
	Short:        "PIN-protected encrypted media vault",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults.BaseDir)
		if err := config.Init(defaults.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults.ConfigPath)
		fmt.Printf("Vault Root: %s\n", cfg.VaultRoot)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults.ConfigPath)
		fmt.Printf("Vault Root:  %s\n", cfg.VaultRoot)
		fmt.Printf("Log Dir:     %s\n", cfg.LogDir)
		fmt.Printf("PIN Length:  %d\n", cfg.PINLength)
		fmt.Printf("Cipher:      %s\n", cfg.Encryption.Cipher)
		fmt.Printf("Blob Store:  %s\n", cfg.Blobs.Type)
		if cfg.Blobs.Type == "s3" {
			fmt.Printf("  Bucket:    %s/%s (%s)\n", cfg.Blobs.S3Bucket, cfg.Blobs.S3Prefix, cfg.Blobs.S3Region)
		}
		fmt.Printf("Database:    %s\n", cfg.Database.Type)
		fmt.Printf("Thumbnails:  %dpx, %d workers\n", cfg.Thumbnails.Size, cfg.Thumbnails.Workers)
		return nil
	},
}

// ls command
var lsCmd = &cobra.Command{
	Use:   "ls [FOLDER]",
	Short: "List a vault folder",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sortOrder, _ := cmd.Flags().GetString("sort")
		tag, _ := cmd.Flags().GetString("tag")
		query, _ := cmd.Flags().GetString("query")
		all, _ := cmd.Flags().GetBool("all")

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		folder := ""
		if len(args) > 0 {
			folder = args[0]
		}
		parentID, err := a.LookupFolder(folder)
		if err != nil {
			return err
		}

		items, err := a.Session().ListChildren(parentID, pv.ListOptions{
			Sort:           pv.SortOrder(sortOrder),
			Tag:            tag,
			Query:          query,
			IncludeDeleted: all,
		})
		if err != nil {
			return err
		}

		if len(items) == 0 {
			fmt.Println("No items.")
			return nil
		}
		for _, it := range items {
			printItem(a, it, query != "")
		}
		return nil
	},
}

// import command
var importCmd = &cobra.Command{
	Use:   "import PATH...",
	Short: "Import host files into the vault",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		recursive, _ := cmd.Flags().GetBool("recursive")
		into, _ := cmd.Flags().GetString("into")

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		parentID, err := a.LookupFolder(into)
		if err != nil {
			return err
		}

		var total app.ImportSummary
		var failures []app.ImportEvent
		for _, target := range args {
			var bar *progressbar.ProgressBar
			summary, err := a.ImportPath(cmd.Context(), target, parentID, recursive, func(ev app.ImportEvent) {
				if bar == nil {
					bar = progressbar.NewOptions(ev.Total,
						progressbar.OptionSetDescription("Importing "+filepath.Base(target)),
						progressbar.OptionShowCount(),
						progressbar.OptionSetWidth(40),
						progressbar.OptionClearOnFinish(),
					)
				}
				bar.Add(1)
				if ev.Err != nil {
					failures = append(failures, ev)
				}
			})
			if bar != nil {
				bar.Finish()
			}

			total.Added += summary.Added
			total.Renamed += summary.Renamed
			total.Skipped += summary.Skipped
			total.Failed += summary.Failed
			total.Folders += summary.Folders
			if err != nil {
				return fmt.Errorf("importing %s: %w", target, err)
			}
		}

		for _, ev := range failures {
			fmt.Printf("%s %s: %v\n", failMark, ev.Source.Path, ev.Err)
		}
		mark := okMark
		if total.Failed > 0 {
			mark = failMark
		}
		fmt.Printf("%s %s (%d folders created)\n", mark, total, total.Folders)
		if total.Failed > 0 {
			return fmt.Errorf("%d file(s) failed to import", total.Failed)
		}
		return nil
	},
}

// replace command
var replaceCmd = &cobra.Command{
	Use:   "replace ITEM FILE",
	Short: "Replace the content of a vault file with a host file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		it, err := a.Lookup(args[0])
		if err != nil {
			return err
		}
		f, err := os.Open(args[1])
		if err != nil {
			return fmt.Errorf("opening %s: %w", args[1], err)
		}
		defer f.Close()

		updated, err := a.Session().ReplaceContent(cmd.Context(), it.ID, f)
		if err != nil {
			return err
		}
		fmt.Printf("%s Replaced %s (%s)\n", okMark, a.PathOf(updated.ID), formatSize(updated.Size))
		return nil
	},
}

// cat command
var catCmd = &cobra.Command{
	Use:   "cat ITEM",
	Short: "Write the plaintext of a vault file to stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		it, err := a.Lookup(args[0])
		if err != nil {
			return err
		}
		return a.Session().ExportContent(cmd.Context(), it.ID, os.Stdout)
	},
}

// export command
var exportCmd = &cobra.Command{
	Use:   "export ITEM...",
	Short: "Export vault items to a host directory or a sealed archive",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("to")
		sealed, _ := cmd.Flags().GetString("sealed")
		if (dir == "") == (sealed == "") {
			return errors.New("exactly one of --to or --sealed is required")
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		ids, err := a.LookupAll(args)
		if err != nil {
			return err
		}

		if dir != "" {
			written, err := a.Session().ExportTo(cmd.Context(), ids, dir)
			for _, p := range written {
				fmt.Printf("%s %s\n", infoMark, p)
			}
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			fmt.Printf("%s Exported %d file(s)\n", okMark, len(written))
			return nil
		}

		passphrase, err := readNewPassphrase()
		if err != nil {
			return err
		}
		f, err := os.OpenFile(sealed, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
		if err != nil {
			return fmt.Errorf("creating archive: %w", err)
		}
		n, err := a.Session().ExportSealed(cmd.Context(), ids, f, passphrase)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(sealed)
			return fmt.Errorf("sealed export: %w", err)
		}
		fmt.Printf("%s Sealed %d file(s) into %s\n", okMark, n, sealed)
		return nil
	},
}

// mkdir command
var mkdirCmd = &cobra.Command{
	Use:   "mkdir PATH",
	Short: "Create a vault folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		parent, name := path.Split(path.Clean("/" + args[0]))
		parentID, err := a.LookupFolder(parent)
		if err != nil {
			return err
		}
		folder, err := a.Session().CreateFolder(name, parentID)
		if err != nil {
			return err
		}
		fmt.Printf("%s Created %s\n", okMark, a.PathOf(folder.ID))
		return nil
	},
}

// mv command
var mvCmd = &cobra.Command{
	Use:   "mv ITEM... FOLDER",
	Short: "Move vault items into a folder",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		dest, err := a.LookupFolder(args[len(args)-1])
		if err != nil {
			return err
		}
		ids, err := a.LookupAll(args[:len(args)-1])
		if err != nil {
			return err
		}
		if err := a.Session().Move(ids, dest); err != nil {
			return err
		}
		fmt.Printf("%s Moved %d item(s)\n", okMark, len(ids))
		return nil
	},
}

// rename command
var renameCmd = &cobra.Command{
	Use:   "rename ITEM NEW_NAME",
	Short: "Rename a vault item",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		it, err := a.Lookup(args[0])
		if err != nil {
			return err
		}
		if err := a.Session().Rename(it.ID, args[1]); err != nil {
			return err
		}
		fmt.Printf("%s Renamed to %s\n", okMark, a.PathOf(it.ID))
		return nil
	},
}

// tag command
var tagCmd = &cobra.Command{
	Use:   "tag [ITEM [TAG...]]",
	Short: "Set the tags of an item, or list all tags",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if len(args) == 0 {
			tags, err := a.Session().Tags()
			if err != nil {
				return err
			}
			for _, t := range tags {
				fmt.Println(t)
			}
			return nil
		}

		it, err := a.Lookup(args[0])
		if err != nil {
			return err
		}
		if err := a.Session().SetTags(it.ID, args[1:]); err != nil {
			return err
		}
		fmt.Printf("%s Tagged %s\n", okMark, a.PathOf(it.ID))
		return nil
	},
}

// rm command
var rmCmd = &cobra.Command{
	Use:   "rm ITEM...",
	Short: "Move vault items to the trash",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		ids, err := a.LookupAll(args)
		if err != nil {
			return err
		}
		if err := a.Session().SoftDelete(ids); err != nil {
			return err
		}
		fmt.Printf("%s Moved %d item(s) to the trash\n", okMark, len(ids))
		return nil
	},
}

// restore command
var restoreCmd = &cobra.Command{
	Use:   "restore ITEM...",
	Short: "Restore items from the trash",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		ids, err := a.LookupAll(args)
		if err != nil {
			return err
		}
		if err := a.Session().Restore(ids); err != nil {
			return err
		}
		fmt.Printf("%s Restored %d item(s)\n", okMark, len(ids))
		return nil
	},
}

// trash command
var trashCmd = &cobra.Command{
	Use:   "trash",
	Short: "List trashed items",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		items, err := a.Session().Trash()
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("Trash is empty.")
			return nil
		}
		for _, it := range items {
			deleted := ""
			if it.DeletedAt != nil {
				deleted = it.DeletedAt.Local().Format("2006-01-02 15:04")
			}
			fmt.Printf("%s  %s\n", deleted, a.PathOf(it.ID))
		}
		return nil
	},
}

// purge command
var purgeCmd = &cobra.Command{
	Use:   "purge ITEM...",
	Short: "Permanently delete items and their content",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		ids, err := a.LookupAll(args)
		if err != nil {
			return err
		}
		removed, err := a.Session().Purge(ids)
		if err != nil {
			return err
		}
		fmt.Printf("%s Purged %d item(s)\n", okMark, len(removed))
		return nil
	},
}

var emptyTrashCmd = &cobra.Command{
	Use:   "empty-trash",
	Short: "Permanently delete everything in the trash",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		removed, err := a.Session().EmptyTrash()
		if err != nil {
			return err
		}
		fmt.Printf("%s Purged %d item(s)\n", okMark, len(removed))
		return nil
	},
}

// dupes command
var dupesCmd = &cobra.Command{
	Use:   "dupes",
	Short: "Find duplicate files",
	RunE: func(cmd *cobra.Command, args []string) error {
		resolve, _ := cmd.Flags().GetBool("resolve")

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if resolve {
			trashed, err := a.Session().ResolveDuplicates()
			if err != nil {
				return err
			}
			fmt.Printf("%s Moved %d duplicate(s) to the trash\n", okMark, len(trashed))
			return nil
		}

		groups, err := a.Session().FindDuplicates()
		if err != nil {
			return err
		}
		if len(groups) == 0 {
			fmt.Println("No duplicates found.")
			return nil
		}
		for i, g := range groups {
			fmt.Printf("Group %d (%s, %d copies)\n", i+1, formatSize(g[0].Size), len(g))
			for j, it := range g {
				marker := "  "
				if j == 0 {
					marker = color.GreenString("* ")
				}
				fmt.Printf("  %s%s\n", marker, a.PathOf(it.ID))
			}
		}
		return nil
	},
}

// thumbs command
var thumbsCmd = &cobra.Command{
	Use:   "thumbs",
	Short: "Manage thumbnails",
}

var thumbsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Render missing thumbnails",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		events, err := a.Session().SyncThumbnails(cmd.Context())
		if err != nil {
			return err
		}

		var bar *progressbar.ProgressBar
		var failed []pv.Progress
		rendered := 0
		for ev := range events {
			if bar == nil {
				bar = progressbar.NewOptions(ev.Total,
					progressbar.OptionSetDescription("Rendering thumbnails"),
					progressbar.OptionShowCount(),
					progressbar.OptionSetWidth(40),
					progressbar.OptionClearOnFinish(),
				)
			}
			bar.Set(ev.Processed)
			if ev.Err != nil {
				failed = append(failed, ev)
			} else {
				rendered++
			}
		}
		if bar != nil {
			bar.Finish()
		}

		for _, ev := range failed {
			fmt.Printf("%s %s: %v\n", failMark, a.PathOf(ev.ItemID), ev.Err)
		}
		fmt.Printf("%s Rendered %d thumbnail(s), %d failed\n", okMark, rendered, len(failed))
		return cmd.Context().Err()
	},
}

var thumbsGetCmd = &cobra.Command{
	Use:   "get ITEM FILE",
	Short: "Write the thumbnail of an item as a JPEG file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		it, err := a.Lookup(args[0])
		if err != nil {
			return err
		}
		img, err := a.Session().Thumbnail(cmd.Context(), it.ID)
		if err != nil {
			return err
		}

		f, err := os.OpenFile(args[1], os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
		if err != nil {
			return err
		}
		if err := jpeg.Encode(f, img, nil); err != nil {
			f.Close()
			return fmt.Errorf("encoding thumbnail: %w", err)
		}
		return f.Close()
	},
}

var thumbsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Drop thumbnails of items no longer in the vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.Session().PruneThumbnails()
		if err != nil {
			return err
		}
		fmt.Printf("%s Pruned %d thumbnail(s)\n", okMark, n)
		return nil
	},
}

// locations command
var locationsCmd = &cobra.Command{
	Use:   "locations",
	Short: "List geotagged items",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		locs, err := a.Session().Locations()
		if err != nil {
			return err
		}
		if len(locs) == 0 {
			fmt.Println("No geotagged items.")
			return nil
		}
		for _, l := range locs {
			fmt.Printf("%10.5f %11.5f  %s\n", l.Latitude, l.Longitude, a.PathOf(l.ID))
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Mirror the log to stderr")
	rootCmd.PersistentFlags().BoolVar(&allowRecover, "recover", false, "Open the vault even if the index cannot be read")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// thumbs subcommands
	thumbsCmd.AddCommand(thumbsSyncCmd)
	thumbsCmd.AddCommand(thumbsGetCmd)
	thumbsCmd.AddCommand(thumbsPruneCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(lsCmd)
	lsCmd.Flags().String("sort", string(pv.SortNameAZ), "Sort order: name-az, name-za, date-new, date-old")
	lsCmd.Flags().String("tag", "", "Only show items with this tag")
	lsCmd.Flags().StringP("query", "q", "", "Search the folder's subtree by name or tag")
	lsCmd.Flags().BoolP("all", "a", false, "Include trashed items")
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().BoolP("recursive", "r", false, "Recurse into subdirectories")
	importCmd.Flags().String("into", "", "Destination vault folder")
	rootCmd.AddCommand(replaceCmd)
	rootCmd.AddCommand(catCmd)
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().String("to", "", "Host directory to export into")
	exportCmd.Flags().String("sealed", "", "Write a passphrase-sealed archive to this file")
	rootCmd.AddCommand(mkdirCmd)
	rootCmd.AddCommand(mvCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(tagCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(trashCmd)
	rootCmd.AddCommand(purgeCmd)
	rootCmd.AddCommand(emptyTrashCmd)
	rootCmd.AddCommand(dupesCmd)
	dupesCmd.Flags().Bool("resolve", false, "Trash every copy except the oldest")
	rootCmd.AddCommand(thumbsCmd)
	rootCmd.AddCommand(locationsCmd)
}
