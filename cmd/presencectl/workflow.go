package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"crecheku_backend/internals/features/presence"
	"crecheku_backend/internals/features/presence/dto"
	"crecheku_backend/internals/features/presence/model"
	"crecheku_backend/internals/helpers/dbtime"
)

var (
	validateDate    string
	validatePresent []string
	validateStaff   string

	justifyRecord    string
	justifyChild     string
	justifyDate      string
	justifyReason    string
	justifyRef       string
	justifyFile      string
	justifySecretary string
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Staff step: mark who is present, everyone else becomes absent",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}
		if useMemory {
			if _, err := loadSheet(eng, validateDate); err != nil {
				return err
			}
		}
		day, err := parseDayFlag(eng, validateDate)
		if err != nil {
			return err
		}
		v, err := eng.Service.Validate(rootCtx, dto.ValidateRequest{
			Date:            dbtime.FormatDay(day),
			PresentChildIDs: validatePresent,
			StaffID:         validateStaff,
		})
		if err != nil {
			return err
		}
		return printSheet(v)
	},
}

var justifyCmd = &cobra.Command{
	Use:   "justify",
	Short: "Secretary step: record why a child was absent",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}
		day, err := parseDayFlag(eng, justifyDate)
		if err != nil {
			return err
		}

		if useMemory {
			return fmt.Errorf("justify needs a validated sheet; run it against Postgres")
		}
		recordID, err := resolveRecord(eng, day)
		if err != nil {
			return err
		}

		req := dto.JustifyRequest{
			RecordID:    recordID,
			Date:        dbtime.FormatDay(day),
			Reason:      justifyReason,
			SecretaryID: justifySecretary,
		}
		if justifyRef != "" {
			req.AttachmentRef = &justifyRef
		}
		if justifyFile != "" {
			data, err := os.ReadFile(justifyFile)
			if err != nil {
				return err
			}
			req.Attachment = &dto.AttachmentUpload{
				Filename:    filepath.Base(justifyFile),
				ContentType: mime.TypeByExtension(filepath.Ext(justifyFile)),
				Data:        data,
			}
		}

		v, err := eng.Service.Justify(rootCtx, req)
		if err != nil {
			return err
		}
		return printSheet(v)
	},
}

// resolveRecord turns --record or --child into a record id on the given day's sheet.
func resolveRecord(eng *presence.Engine, day time.Time) (uuid.UUID, error) {
	switch {
	case justifyRecord != "" && justifyChild != "":
		return uuid.Nil, model.Invalid(model.ReasonInvalidPayload, "use either --record or --child")
	case justifyRecord != "":
		id, err := uuid.Parse(justifyRecord)
		if err != nil {
			return uuid.Nil, model.Invalid(model.ReasonInvalidPayload, "record id is not a uuid")
		}
		return id, nil
	case justifyChild != "":
		v, err := eng.Service.GetSheet(rootCtx, day)
		if err != nil {
			return uuid.Nil, err
		}
		r := v.RecordByChild(justifyChild)
		if r == nil {
			return uuid.Nil, model.NotFound(model.ReasonRecordNotFound, fmt.Sprintf("child %s has no record on %s", justifyChild, v.Date))
		}
		return r.ID, nil
	default:
		return uuid.Nil, model.Invalid(model.ReasonInvalidPayload, "--record or --child is required")
	}
}

func init() {
	validateCmd.Flags().StringVar(&validateDate, "date", "", "Day (YYYY-MM-DD, default today)")
	validateCmd.Flags().StringSliceVar(&validatePresent, "present", nil, "Present child ids (comma separated)")
	validateCmd.Flags().StringVar(&validateStaff, "staff", "", "Validating staff member id")
	_ = validateCmd.MarkFlagRequired("staff")

	justifyCmd.Flags().StringVar(&justifyRecord, "record", "", "Record id to justify")
	justifyCmd.Flags().StringVar(&justifyChild, "child", "", "Child id to justify (alternative to --record)")
	justifyCmd.Flags().StringVar(&justifyDate, "date", "", "Day of the absence (YYYY-MM-DD, default today)")
	justifyCmd.Flags().StringVar(&justifyReason, "reason", "", "Reason for the absence")
	justifyCmd.Flags().StringVar(&justifyRef, "ref", "", "Reference to an already stored attachment")
	justifyCmd.Flags().StringVar(&justifyFile, "file", "", "Attachment file to upload")
	justifyCmd.Flags().StringVar(&justifySecretary, "secretary", "", "Secretary id")
	_ = justifyCmd.MarkFlagRequired("reason")

	rootCmd.AddCommand(validateCmd, justifyCmd)
}
