package receipt

import (
	"errors"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-extractor/internal/extraction"
)

var _ = Describe("BoltDB", func() {
	var (
		tmpDir string
		dbPath string
		db     *BoltDB
	)

	newReceipt := func(id string, createdAt time.Time) *Receipt {
		merchant := "Corner Market"
		total := decimal.RequireFromString("9.17")
		return &Receipt{
			ID:     id,
			Source: SourceText,
			Record: extraction.ReceiptRecord{
				SchemaVersion: 1,
				Merchant:      &merchant,
				Total:         &total,
				Items:         []extraction.LineItem{{Name: "Bananas", Price: decimal.RequireFromString("3.99")}},
				RawText:       "CORNER MARKET\nTOTAL 9.17",
				Confidence:    0.8,
			},
			CreatedAt: createdAt,
		}
	}

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		dbPath = filepath.Join(tmpDir, "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	Describe("SaveReceipt", func() {
		var (
			receipt *Receipt
			err     error
		)

		BeforeEach(func() {
			receipt = newReceipt("test-id", time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC))
		})

		JustBeforeEach(func() {
			err = db.SaveReceipt(receipt)
		})

		It("should round-trip the record exactly", func() {
			Expect(err).NotTo(HaveOccurred())
			saved, getErr := db.GetReceipt("test-id")
			Expect(getErr).NotTo(HaveOccurred())
			Expect(*saved.Record.Merchant).To(Equal("Corner Market"))
			Expect(saved.Record.Total.StringFixed(2)).To(Equal("9.17"))
			Expect(saved.Record.Items).To(HaveLen(1))
			Expect(saved.Record.Items[0].Price.Equal(decimal.RequireFromString("3.99"))).To(BeTrue())
			Expect(saved.CreatedAt.Equal(receipt.CreatedAt)).To(BeTrue())
		})
	})

	Describe("GetReceipt", func() {
		When("receipt does not exist", func() {
			It("should return ErrNotFound", func() {
				_, err := db.GetReceipt("missing")
				Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
				Expect(err).To(MatchError(ContainSubstring("missing")))
			})
		})
	})

	Describe("ListReceipts", func() {
		When("no receipts exist", func() {
			It("should return an empty slice", func() {
				receipts, err := db.ListReceipts()
				Expect(err).NotTo(HaveOccurred())
				Expect(receipts).NotTo(BeNil())
				Expect(receipts).To(BeEmpty())
			})
		})

		When("receipts exist", func() {
			BeforeEach(func() {
				base := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
				Expect(db.SaveReceipt(newReceipt("a", base))).To(Succeed())
				Expect(db.SaveReceipt(newReceipt("b", base.Add(2*time.Hour)))).To(Succeed())
				Expect(db.SaveReceipt(newReceipt("c", base.Add(time.Hour)))).To(Succeed())
			})

			It("should return them newest first", func() {
				receipts, err := db.ListReceipts()
				Expect(err).NotTo(HaveOccurred())
				ids := make([]string, 0, len(receipts))
				for _, r := range receipts {
					ids = append(ids, r.ID)
				}
				Expect(ids).To(Equal([]string{"b", "c", "a"}))
			})
		})
	})

	Describe("DeleteReceipt", func() {
		BeforeEach(func() {
			Expect(db.SaveReceipt(newReceipt("test-id", time.Now()))).To(Succeed())
		})

		It("should remove the receipt", func() {
			Expect(db.DeleteReceipt("test-id")).To(Succeed())
			_, err := db.GetReceipt("test-id")
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
		})

		It("should return ErrNotFound for an unknown ID", func() {
			err := db.DeleteReceipt("missing")
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
		})
	})

	Describe("enhancement cache", func() {
		It("should return nil for an unknown key", func() {
			draft, err := db.LoadEnhancement("unknown")
			Expect(err).NotTo(HaveOccurred())
			Expect(draft).To(BeNil())
		})

		It("should store and load drafts", func() {
			merchant := "Fresh Foods"
			date, ok := extraction.NewDate(2025, 3, 14)
			Expect(ok).To(BeTrue())
			total := decimal.RequireFromString("12.30")
			key := extraction.CacheKey("raw text")

			Expect(db.StoreEnhancement(key, &extraction.Draft{Merchant: &merchant, Date: &date, Total: &total})).To(Succeed())

			draft, err := db.LoadEnhancement(key)
			Expect(err).NotTo(HaveOccurred())
			Expect(*draft.Merchant).To(Equal("Fresh Foods"))
			Expect(draft.Date.String()).To(Equal("2025-03-14"))
			Expect(draft.Total.StringFixed(2)).To(Equal("12.30"))
		})

		It("should survive reopening the database", func() {
			merchant := "Fresh Foods"
			Expect(db.StoreEnhancement("k", &extraction.Draft{Merchant: &merchant})).To(Succeed())
			Expect(db.Close()).To(Succeed())

			var err error
			db, err = NewBoltDB(dbPath)
			Expect(err).NotTo(HaveOccurred())
			draft, err := db.LoadEnhancement("k")
			Expect(err).NotTo(HaveOccurred())
			Expect(*draft.Merchant).To(Equal("Fresh Foods"))
		})
	})
})
