package extraction

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocateItems", func() {
	It("returns the lines between the header marker and the footer", func() {
		lines := Normalize("Joe's Diner\nTable 12\nBurger 8.00\nFries 2.00\nSubtotal 10.00\nThank you")
		Expect(LocateItems(lines)).To(Equal(Section{Start: 2, End: 4}))
	})

	It("uses the date line as the header marker", func() {
		lines := Normalize(groceryReceipt)
		Expect(LocateItems(lines)).To(Equal(Section{Start: 3, End: 5}))
	})

	It("falls back to the first 70% of lines without a footer", func() {
		text := strings.Repeat("Something 1.00\n", 10)
		Expect(LocateItems(Normalize(text))).To(Equal(Section{Start: 0, End: 7}))
	})

	It("recognizes a footer whose amount is on the next line", func() {
		lines := Normalize("Tea 2.00\nTotal\n2.00")
		Expect(LocateItems(lines)).To(Equal(Section{Start: 0, End: 1}))
	})

	It("never returns an empty span for non-empty input", func() {
		lines := Normalize("Total 5.00")
		s := LocateItems(lines)
		Expect(s.Len()).To(BeNumerically(">", 0))
	})

	It("returns an empty span for no lines", func() {
		Expect(LocateItems(nil)).To(Equal(Section{}))
	})
})

var _ = Describe("ParseItems", func() {
	var (
		text  string
		items []LineItem
	)

	JustBeforeEach(func() {
		items = ParseItems(Normalize(text))
	})

	When("name and price share a line", func() {
		BeforeEach(func() {
			text = "Bananas  $3.99"
		})

		It("reads the item", func() {
			Expect(items).To(HaveLen(1))
			Expect(items[0].Name).To(Equal("Bananas"))
			Expect(items[0].Price.StringFixed(2)).To(Equal("3.99"))
			Expect(items[0].Quantity).To(BeNil())
			Expect(items[0].UnitPrice).To(BeNil())
		})
	})

	When("a quantity and name precede a price line", func() {
		BeforeEach(func() {
			text = "2 Apples\n5.00"
		})

		It("reads one item with the quantity", func() {
			Expect(items).To(HaveLen(1))
			Expect(items[0].Name).To(Equal("Apples"))
			Expect(items[0].Price.StringFixed(2)).To(Equal("5.00"))
			Expect(items[0].Quantity).To(HaveValue(Equal(2)))
		})
	})

	When("a name precedes a quantity-times-unit line", func() {
		BeforeEach(func() {
			text = "Coffee Beans\n2 x 4.50"
		})

		It("computes the aggregate price", func() {
			Expect(items).To(HaveLen(1))
			Expect(items[0].Name).To(Equal("Coffee Beans"))
			Expect(items[0].Price.StringFixed(2)).To(Equal("9.00"))
			Expect(items[0].Quantity).To(HaveValue(Equal(2)))
			Expect(fixed(items[0].UnitPrice)).To(Equal("4.50"))
		})
	})

	When("a line carries an inline unit price", func() {
		BeforeEach(func() {
			text = "Soda 2 @ 1.25 2.50"
		})

		It("splits quantity, unit and aggregate", func() {
			Expect(items).To(HaveLen(1))
			Expect(items[0].Name).To(Equal("Soda"))
			Expect(items[0].Price.StringFixed(2)).To(Equal("2.50"))
			Expect(items[0].Quantity).To(HaveValue(Equal(2)))
			Expect(fixed(items[0].UnitPrice)).To(Equal("1.25"))
		})
	})

	When("a dotted leader separates name and price", func() {
		BeforeEach(func() {
			text = "Notebook.........7.25"
		})

		It("reads the item from the columns", func() {
			Expect(items).To(HaveLen(1))
			Expect(items[0].Name).To(Equal("Notebook"))
			Expect(items[0].Price.StringFixed(2)).To(Equal("7.25"))
		})
	})

	When("a tabular row has quantity, unit and amount columns", func() {
		BeforeEach(func() {
			text = "Coffee\t2\t3.50\t7.00"
		})

		It("fills quantity and unit price", func() {
			Expect(items).To(HaveLen(1))
			Expect(items[0].Name).To(Equal("Coffee"))
			Expect(items[0].Price.StringFixed(2)).To(Equal("7.00"))
			Expect(items[0].Quantity).To(HaveValue(Equal(2)))
			Expect(fixed(items[0].UnitPrice)).To(Equal("3.50"))
		})
	})

	When("tabular rows have only quantity and amount columns", func() {
		BeforeEach(func() {
			text = "Widget\t2\t5.00\nGadget     3     9.00"
		})

		It("keeps the quantity out of the name", func() {
			Expect(items).To(HaveLen(2))
			Expect(items[0].Name).To(Equal("Widget"))
			Expect(items[0].Quantity).To(HaveValue(Equal(2)))
			Expect(items[0].Price.StringFixed(2)).To(Equal("5.00"))
			Expect(items[1].Name).To(Equal("Gadget"))
			Expect(items[1].Quantity).To(HaveValue(Equal(3)))
			Expect(items[1].Price.StringFixed(2)).To(Equal("9.00"))
		})
	})

	When("a line fits more than one shape", func() {
		BeforeEach(func() {
			text = "Bananas     3.99"
		})

		It("keeps a single item", func() {
			Expect(items).To(HaveLen(1))
			Expect(items[0].Name).To(Equal("Bananas"))
			Expect(items[0].Price.StringFixed(2)).To(Equal("3.99"))
		})
	})

	When("an item is free", func() {
		BeforeEach(func() {
			text = "Free Refill  0.00"
		})

		It("keeps it", func() {
			Expect(items).To(HaveLen(1))
			Expect(items[0].Price.IsZero()).To(BeTrue())
		})
	})

	When("summary and tender lines are present", func() {
		BeforeEach(func() {
			text = "Burger 8.00\nTOTAL 8.00\nVISA 8.00\nCoupon -1.00\nTax 0.40"
		})

		It("keeps only the purchase", func() {
			Expect(items).To(HaveLen(1))
			Expect(items[0].Name).To(Equal("Burger"))
		})
	})

	When("the same item is bought twice on separate lines", func() {
		BeforeEach(func() {
			text = "Donut 1.50\nDonut 1.50"
		})

		It("keeps both purchases", func() {
			Expect(items).To(HaveLen(2))
		})
	})

	When("several layouts are mixed", func() {
		BeforeEach(func() {
			text = "Bread 2.00\nCheese\n6.25\n3 Eggs\n1.50"
		})

		It("returns the items in document order", func() {
			names := make([]string, len(items))
			for i, it := range items {
				names[i] = it.Name
			}
			Expect(names).To(Equal([]string{"Bread", "Cheese", "Eggs"}))
		})

		It("consumes each line once", func() {
			Expect(ItemsSum(items).StringFixed(2)).To(Equal("9.75"))
		})
	})

	When("there are no lines", func() {
		BeforeEach(func() {
			text = ""
		})

		It("returns an empty, non-nil slice", func() {
			Expect(items).NotTo(BeNil())
			Expect(items).To(BeEmpty())
		})
	})
})
