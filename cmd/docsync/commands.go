package main

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"docvault/internal/coordinator"
	"docvault/internal/model"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List documents visible to the caller",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), cmd.ErrOrStderr(), func(s *session) error {
				return writeJSON(cmd.OutOrStdout(), s.coord.ListDocuments(cmd.Context()))
			})
		},
	}
}

func newUploadCmd() *cobra.Command {
	var (
		meta        model.Metadata
		contentType string
	)
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a new document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			if contentType == "" {
				contentType = mime.TypeByExtension(filepath.Ext(path))
			}
			if meta.Title == "" {
				meta.Title = filepath.Base(path)
			}
			upload := coordinator.Upload{Name: filepath.Base(path), ContentType: contentType, Content: f}

			return withSession(cmd.Context(), cmd.ErrOrStderr(), func(s *session) error {
				doc, err := s.coord.CreateDocument(cmd.Context(), upload, meta)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), doc)
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&meta.Title, "title", "", "Document title (defaults to the file name)")
	flags.StringVar(&meta.Category, "category", "", "Category")
	flags.StringVar(&meta.SubCategory, "sub-category", "", "Sub-category")
	flags.StringVar(&meta.Year, "year", "", "Year the document belongs to")
	flags.StringVar(&meta.Org, "org", "", "Issuing organization")
	flags.StringSliceVar(&meta.Recipients, "recipient", nil, "Recipient (repeatable)")
	flags.StringVar(&meta.WarrantyStart, "warranty-start", "", "Warranty start date")
	flags.StringVar(&meta.WarrantyExpiresAt, "warranty-expires-at", "", "Warranty expiry date")
	flags.StringVar(&meta.AutoDeleteAfter, "auto-delete-after", "", "Date after which the document may be removed")
	flags.StringVar(&contentType, "content-type", "", "Content type (guessed from the extension when empty)")
	return cmd
}

func newUpdateCmd() *cobra.Command {
	var (
		title, category, subCategory, year, org string
		recipients, sharedWith                  []string
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change metadata of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			var patch model.Patch
			if flags.Changed("title") {
				patch.Title = &title
			}
			if flags.Changed("category") {
				patch.Category = &category
			}
			if flags.Changed("sub-category") {
				patch.SubCategory = &subCategory
			}
			if flags.Changed("year") {
				patch.Year = &year
			}
			if flags.Changed("org") {
				patch.Org = &org
			}
			if flags.Changed("recipient") {
				patch.Recipients = &recipients
			}
			if flags.Changed("share-with") {
				patch.SharedWith = &sharedWith
			}
			if patch.IsEmpty() {
				return errors.New("nothing to update")
			}

			return withSession(cmd.Context(), cmd.ErrOrStderr(), func(s *session) error {
				res, err := s.coord.UpdateDocument(cmd.Context(), args[0], patch)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&title, "title", "", "New title")
	flags.StringVar(&category, "category", "", "New category")
	flags.StringVar(&subCategory, "sub-category", "", "New sub-category")
	flags.StringVar(&year, "year", "", "New year")
	flags.StringVar(&org, "org", "", "New organization")
	flags.StringSliceVar(&recipients, "recipient", nil, "Replace recipients (repeatable)")
	flags.StringSliceVar(&sharedWith, "share-with", nil, "Replace the share list (repeatable)")
	return cmd
}

func newTrashCmd() *cobra.Command {
	return newTrashStateCmd("trash <id>", "Move a document to the trash", true)
}

func newRestoreCmd() *cobra.Command {
	return newTrashStateCmd("restore <id>", "Restore a document from the trash", false)
}

func newTrashStateCmd(use, short string, trashed bool) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), cmd.ErrOrStderr(), func(s *session) error {
				ack, err := s.coord.SetTrashed(cmd.Context(), args[0], trashed)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), ack)
			})
		},
	}
}

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a document forever",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), cmd.ErrOrStderr(), func(s *session) error {
				ack, err := s.coord.DeleteForever(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), ack)
			})
		},
	}
}

type downloadResult struct {
	Path        string `json:"path"`
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	Disposition string `json:"disposition"`
	Size        int64  `json:"size"`
}

func newDownloadCmd() *cobra.Command {
	var name, out string
	cmd := &cobra.Command{
		Use:   "download <id>",
		Short: "Download the bytes of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), cmd.ErrOrStderr(), func(s *session) error {
				h, err := s.coord.DownloadDocument(cmd.Context(), args[0], name)
				if err != nil {
					return err
				}
				defer h.Release()

				dst := out
				if dst == "" {
					dst = h.FileName
				}
				if err := copyFile(h.Path, dst); err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), downloadResult{
					Path:        dst,
					FileName:    h.FileName,
					ContentType: h.ContentType,
					Disposition: h.Disposition,
					Size:        h.Size,
				})
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "File name to use when the document has none")
	cmd.Flags().StringVarP(&out, "output", "o", "", "Destination path (defaults to the file name in the current directory)")
	return cmd
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, in); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return f.Close()
}
