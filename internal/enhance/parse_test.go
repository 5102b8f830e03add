package enhance

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/receipt-extractor/internal/extraction"
)

var _ = Describe("ParseResponse", func() {
	var (
		jsonInput string
		data      *extraction.Draft
		err       error
	)

	JustBeforeEach(func() {
		data, err = ParseResponse(jsonInput)
	})

	When("parsing valid JSON", func() {
		BeforeEach(func() {
			jsonInput = `{
				"merchant": "CVS Pharmacy",
				"date": "2024-01-15",
				"subtotal": 23.50,
				"tax": {"gst": null, "pst": null, "hst": null, "qst": null, "total": 2.49},
				"total": 25.99,
				"items": [{"name": "Vitamins", "price": 23.50, "quantity": 1, "unit_price": null}]
			}`
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should parse the merchant correctly", func() {
			Expect(*data.Merchant).To(Equal("CVS Pharmacy"))
		})

		It("should parse the date correctly", func() {
			Expect(data.Date.String()).To(Equal("2024-01-15"))
		})

		It("should parse the amounts exactly", func() {
			Expect(data.Subtotal.String()).To(Equal("23.5"))
			Expect(data.Tax.Total.StringFixed(2)).To(Equal("2.49"))
			Expect(data.Total.StringFixed(2)).To(Equal("25.99"))
		})

		It("should parse the items", func() {
			Expect(data.Items).To(HaveLen(1))
			Expect(data.Items[0].Name).To(Equal("Vitamins"))
			Expect(data.Items[0].Quantity).To(HaveValue(Equal(1)))
		})
	})

	When("parsing JSON with markdown code blocks", func() {
		BeforeEach(func() {
			jsonInput = "```json\n{\"merchant\": \"Test\", \"total\": 10.50}\n```"
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should parse the merchant correctly", func() {
			Expect(*data.Merchant).To(Equal("Test"))
		})
	})

	When("parsing JSON with surrounding chatter", func() {
		BeforeEach(func() {
			jsonInput = "Here is the receipt:\n{\"total\": \"$1,234.50\"}\nLet me know!"
		})

		It("reads money strings", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(data.Total.StringFixed(2)).To(Equal("1234.50"))
		})
	})

	When("an item is malformed", func() {
		BeforeEach(func() {
			jsonInput = `{"items": [
				{"name": "Milk", "price": 4.50},
				{"name": 12, "price": 1.00},
				{"name": "Bread"},
				{"name": "Refund", "price": -3.00},
				{"name": "Eggs", "price": "3,25", "quantity": 0}
			]}`
		})

		It("drops only that item", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(data.Items).To(HaveLen(2))
			Expect(data.Items[0].Name).To(Equal("Milk"))
			Expect(data.Items[1].Name).To(Equal("Eggs"))
			Expect(data.Items[1].Price.StringFixed(2)).To(Equal("3.25"))
			Expect(data.Items[1].Quantity).To(BeNil())
		})
	})

	When("an item quantity is out of range", func() {
		BeforeEach(func() {
			jsonInput = `{"items": [{"name": "Gum", "price": 1.00, "quantity": 1e30}]}`
		})

		It("keeps the item without a quantity", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(data.Items).To(HaveLen(1))
			Expect(data.Items[0].Name).To(Equal("Gum"))
			Expect(data.Items[0].Quantity).To(BeNil())
		})
	})

	When("a value is unreadable", func() {
		BeforeEach(func() {
			jsonInput = `{"merchant": "Shop", "date": "15/01/2024", "total": "n/a", "subtotal": -5}`
		})

		It("treats it as absent", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(data.Date).To(BeNil())
			Expect(data.Total).To(BeNil())
			Expect(data.Subtotal).To(BeNil())
			Expect(*data.Merchant).To(Equal("Shop"))
		})
	})

	When("a field has the wrong type", func() {
		BeforeEach(func() {
			jsonInput = `{"merchant": ["Shop"], "total": 10}`
		})

		It("rejects the answer", func() {
			Expect(err).To(MatchError(ContainSubstring("does not match schema")))
		})
	})

	When("parsing invalid JSON", func() {
		BeforeEach(func() {
			jsonInput = `invalid json`
		})

		It("returns the error", func() {
			Expect(err).To(HaveOccurred())
		})
	})
})

var _ = Describe("buildPrompt", func() {
	It("includes the raw text and the partial extraction", func() {
		record := extraction.Assemble(extraction.Draft{Merchant: ptr("Corner Market")}, "RAW TEXT", 0.5, nil)
		prompt, err := buildPrompt(extraction.EnhanceRequest{RawText: "RAW TEXT", Draft: record})
		Expect(err).NotTo(HaveOccurred())
		Expect(prompt).To(ContainSubstring("RAW TEXT"))
		Expect(prompt).To(ContainSubstring(`"merchant": "Corner Market"`))
	})
})

func ptr[T any](v T) *T {
	return &v
}
