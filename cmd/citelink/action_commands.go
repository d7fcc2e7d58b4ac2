package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"citelink/internal/identifiers"
	"citelink/internal/records"
	"citelink/internal/zotero"
)

func newSelectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "select ID|URL KIND VALUE",
		Short: "Choose an identifier candidate for a URL awaiting selection",
		Long: "Choose an identifier candidate for a URL awaiting selection.\n" +
			"KIND is one of: doi, arxiv, pmid, isbn.",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(svcs *services) error {
				rec, err := resolveRecord(cmd.Context(), svcs.store, args[0])
				if err != nil {
					return err
				}
				kind := identifiers.Kind(strings.ToLower(strings.TrimSpace(args[1])))
				switch kind {
				case identifiers.KindDOI, identifiers.KindArXiv, identifiers.KindPMID, identifiers.KindISBN:
				default:
					return fmt.Errorf("unknown identifier kind %q", args[1])
				}

				updated, err := svcs.actions.SelectCandidate(cmd.Context(), rec.ID, kind, args[2])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "#%d: recorded %s, status %s\n", updated.ID, kind, updated.Status)
				return nil
			})
		},
	}
}

func newApproveCommand(ctx *commandContext) *cobra.Command {
	var overridePairs []string

	cmd := &cobra.Command{
		Use:   "approve ID|URL",
		Short: "Approve extracted metadata and store the citation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(svcs *services) error {
				rec, err := resolveRecord(cmd.Context(), svcs.store, args[0])
				if err != nil {
					return err
				}
				overrides, err := parseOverrides(overridePairs)
				if err != nil {
					return err
				}

				updated, err := svcs.actions.ApproveMetadata(cmd.Context(), rec.ID, overrides)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "#%d: stored as %s (%s)\n", updated.ID, updated.ItemKey, updated.Status)
				return nil
			})
		},
	}

	cmd.Flags().StringArrayVar(&overridePairs, "set", nil, "Override an extracted field, e.g. --set title=...")
	return cmd
}

func newStoreCustomCommand(ctx *commandContext) *cobra.Command {
	var title, itemType, date, creators, publication string

	cmd := &cobra.Command{
		Use:   "store-custom ID|URL",
		Short: "Store a manually entered citation for a URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(svcs *services) error {
				rec, err := resolveRecord(cmd.Context(), svcs.store, args[0])
				if err != nil {
					return err
				}

				item := &zotero.Item{
					ItemType:         strings.TrimSpace(itemType),
					Title:            strings.TrimSpace(title),
					Date:             strings.TrimSpace(date),
					PublicationTitle: strings.TrimSpace(publication),
					URL:              rec.URL,
				}
				if item.ItemType == "" {
					item.ItemType = zotero.ItemTypeWebpage
				}
				for _, name := range strings.Split(creators, ";") {
					name = strings.TrimSpace(name)
					if name == "" {
						continue
					}
					last, first, _ := strings.Cut(name, ",")
					item.Creators = append(item.Creators, zotero.Creator{
						CreatorType: "author",
						LastName:    strings.TrimSpace(last),
						FirstName:   strings.TrimSpace(first),
					})
				}

				updated, err := svcs.actions.StoreCustom(cmd.Context(), rec.ID, item)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "#%d: stored as %s (%s)\n", updated.ID, updated.ItemKey, updated.Status)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Citation title (required)")
	cmd.Flags().StringVar(&itemType, "type", "", "Item type (default webpage)")
	cmd.Flags().StringVar(&date, "date", "", "Publication date")
	cmd.Flags().StringVar(&creators, "creators", "", "Semicolon-separated creators, each as \"Last, First\"")
	cmd.Flags().StringVar(&publication, "publication", "", "Publication or venue title")
	return cmd
}

func newResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset ID|URL",
		Short: "Return a URL to not_started, clearing transient errors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(svcs *services) error {
				rec, err := resolveRecord(cmd.Context(), svcs.store, args[0])
				if err != nil {
					return err
				}
				updated, err := svcs.actions.Reset(cmd.Context(), rec.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "#%d: status %s\n", updated.ID, updated.Status)
				return nil
			})
		},
	}
}

func newIntentCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "intent ID|URL INTENT",
		Short: "Set a URL's processing intent",
		Long: "Set a URL's processing intent.\n" +
			"INTENT is one of: auto, priority, manual_only, ignore, archive.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(svcs *services) error {
				rec, err := resolveRecord(cmd.Context(), svcs.store, args[0])
				if err != nil {
					return err
				}
				intent, ok := records.ParseIntent(args[1])
				if !ok {
					return fmt.Errorf("unknown intent %q", args[1])
				}

				var updated *records.Record
				switch intent {
				case records.IntentIgnore:
					updated, err = svcs.actions.Ignore(cmd.Context(), rec.ID)
				case records.IntentArchive:
					updated, err = svcs.actions.Archive(cmd.Context(), rec.ID)
				default:
					if err = svcs.store.SetIntent(cmd.Context(), rec.ID, intent); err == nil {
						updated, err = svcs.store.GetByID(cmd.Context(), rec.ID)
					}
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "#%d: intent %s, status %s\n", updated.ID, updated.Intent, updated.Status)
				return nil
			})
		},
	}
}

func newUnlinkCommand(ctx *commandContext) *cobra.Command {
	var deleteItem bool

	cmd := &cobra.Command{
		Use:   "unlink ID|URL",
		Short: "Detach a URL from its stored citation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(svcs *services) error {
				rec, err := resolveRecord(cmd.Context(), svcs.store, args[0])
				if err != nil {
					return err
				}
				updated, err := svcs.actions.Unlink(cmd.Context(), rec.ID, deleteItem)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "#%d: unlinked, status %s\n", updated.ID, updated.Status)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&deleteItem, "delete-item", false, "Also delete the item when this record created it and nothing else links it")
	return cmd
}
