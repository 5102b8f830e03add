package extraction

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Tolerance", func() {
	var t Tolerance

	BeforeEach(func() {
		t = DefaultTolerance()
	})

	It("uses one percent of large amounts", func() {
		Expect(t.Agree(dec("100.00"), dec("100.90"))).To(BeTrue())
		Expect(t.Agree(dec("100.00"), dec("101.10"))).To(BeFalse())
	})

	It("uses five cents for small amounts", func() {
		Expect(t.Agree(dec("5.00"), dec("5.05"))).To(BeTrue())
		Expect(t.Agree(dec("5.00"), dec("5.06"))).To(BeFalse())
	})
})

var _ = Describe("Reconciler", func() {
	var (
		draft      Draft
		confidence float64
		issues     []Issue
	)

	consistent := func() Draft {
		return Draft{
			Merchant: ptr("Corner Market"),
			Subtotal: decp("10.00"),
			Tax:      TaxBreakdown{Total: decp("1.50")},
			Total:    decp("11.50"),
			Items: []LineItem{
				{Name: "Pasta", Price: dec("4.00")},
				{Name: "Sauce", Price: dec("6.00")},
			},
			Confidence: map[Field]float64{
				FieldMerchant: 0.75, FieldSubtotal: 0.95, FieldTax: 0.8,
				FieldTotal: 0.85, FieldItems: 0.8,
			},
			SourceConfidence: 1,
		}
	}

	JustBeforeEach(func() {
		confidence, issues = NewReconciler(DefaultTolerance()).Reconcile(draft)
	})

	When("the amounts agree", func() {
		BeforeEach(func() {
			draft = consistent()
		})

		It("flags nothing", func() {
			Expect(issues).To(BeEmpty())
		})

		It("returns a confidence in (0, 1]", func() {
			Expect(confidence).To(BeNumerically(">", 0))
			Expect(confidence).To(BeNumerically("<=", 1))
		})
	})

	When("the total disagrees with subtotal plus tax", func() {
		var baseline float64

		BeforeEach(func() {
			baseline, _ = NewReconciler(DefaultTolerance()).Reconcile(consistent())
			draft = consistent()
			draft.Total = decp("25.00")
		})

		It("flags the mismatch", func() {
			Expect(issues).To(HaveLen(1))
			Expect(issues[0].Code).To(Equal(IssueSubtotalTaxTotal))
			Expect(fixed(issues[0].Expected)).To(Equal("11.50"))
			Expect(fixed(issues[0].Actual)).To(Equal("25.00"))
		})

		It("lowers the confidence", func() {
			Expect(confidence).To(BeNumerically("<", baseline))
		})

		It("keeps the extracted values", func() {
			Expect(fixed(draft.Total)).To(Equal("25.00"))
			Expect(fixed(draft.Subtotal)).To(Equal("10.00"))
		})
	})

	When("the items disagree with the subtotal", func() {
		BeforeEach(func() {
			draft = consistent()
			draft.Items = draft.Items[:1]
		})

		It("flags the items", func() {
			Expect(issues).To(ContainElement(HaveField("Code", IssueItemsSubtotal)))
		})
	})

	When("there is no subtotal", func() {
		BeforeEach(func() {
			draft = consistent()
			draft.Subtotal = nil
			draft.Total = decp("20.00")
		})

		It("checks items plus tax against the total", func() {
			Expect(issues).To(HaveLen(1))
			Expect(issues[0].Code).To(Equal(IssueItemsTotal))
		})
	})

	When("named taxes disagree with the tax total", func() {
		BeforeEach(func() {
			draft = consistent()
			draft.Tax = TaxBreakdown{GST: decp("0.50"), PST: decp("0.70"), Total: decp("2.00")}
			draft.Total = decp("11.20")
		})

		It("flags the components", func() {
			Expect(issues).To(ConsistOf(HaveField("Code", IssueTaxComponents)))
		})
	})

	When("the OCR engine was unsure", func() {
		var sure float64

		BeforeEach(func() {
			sure, _ = NewReconciler(DefaultTolerance()).Reconcile(consistent())
			draft = consistent()
			draft.SourceConfidence = 0.2
		})

		It("scales the confidence down", func() {
			Expect(confidence).To(BeNumerically("<", sure))
		})
	})

	When("the draft is empty", func() {
		BeforeEach(func() {
			draft = Draft{}
		})

		It("scores zero", func() {
			Expect(confidence).To(BeZero())
			Expect(issues).To(BeEmpty())
		})
	})
})
