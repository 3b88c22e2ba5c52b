package parse

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/emrudholm/kvitto-tracker/internal/receipt"
)

var _ = Describe("ParseKivra", func() {
	var (
		parser *Parser
		data   []byte
		rec    *receipt.Receipt
		err    error
	)

	BeforeEach(func() {
		parser = newTestParser(map[string]string{"mjölk": "Dairy"})
	})

	JustBeforeEach(func() {
		rec, err = parser.ParseKivra(data)
	})

	When("the document uses canonical tags", func() {
		BeforeEach(func() {
			data = []byte(`<Receipt>
				<Date>2024-03-01T11:45:00</Date>
				<Store>ICA Nära Hornstull</Store>
				<Items>
					<Item>
						<Name>Mjölk</Name>
						<Price>15,00</Price>
						<Quantity>1</Quantity>
					</Item>
					<Item>
						<Name>Bröd</Name>
						<Price>20,00</Price>
						<Quantity>2</Quantity>
					</Item>
				</Items>
			</Receipt>`)
		})

		It("should not error", func() {
			Expect(err).ToNot(HaveOccurred())
		})

		It("should extract the date and store", func() {
			Expect(rec.Date).To(Equal(time.Date(2024, 3, 1, 11, 45, 0, 0, time.UTC)))
			Expect(rec.Store).To(Equal("ICA Nära Hornstull"))
		})

		It("should extract the items with their categories", func() {
			Expect(rec.Items).To(HaveLen(2))
			Expect(rec.Items[0].Name).To(Equal("Mjölk"))
			Expect(rec.Items[0].Price.StringFixed(2)).To(Equal("15.00"))
			Expect(rec.Items[0].Quantity).To(Equal(1))
			Expect(rec.Items[0].Category).To(Equal("Dairy"))
			Expect(rec.Items[1].Quantity).To(Equal(2))
		})

		It("should sum the line subtotals into the total", func() {
			Expect(rec.Total.StringFixed(2)).To(Equal("55.00"))
		})
	})

	When("the document uses lowercase alias tags", func() {
		BeforeEach(func() {
			data = []byte(`<receipt>
				<date>2024-03-01</date>
				<seller>ICA Kvantum</seller>
				<lines>
					<line>
						<description>Smör</description>
						<amount>42,50</amount>
					</line>
				</lines>
			</receipt>`)
		})

		It("should resolve each field through its fallback chain", func() {
			Expect(err).ToNot(HaveOccurred())
			Expect(rec.Store).To(Equal("ICA Kvantum"))
			Expect(rec.Date).To(Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
			Expect(rec.Items).To(HaveLen(1))
			Expect(rec.Items[0].Name).To(Equal("Smör"))
			Expect(rec.Items[0].Price.StringFixed(2)).To(Equal("42.50"))
			Expect(rec.Items[0].Quantity).To(Equal(1))
		})
	})

	When("the document carries a default namespace", func() {
		BeforeEach(func() {
			data = []byte(`<Receipt xmlns="urn:kivra:receipt:v2">
				<Store>ICA Maxi</Store>
				<Item>
					<Name>Ägg</Name>
					<Price>34,95</Price>
				</Item>
			</Receipt>`)
		})

		It("should match elements by local name", func() {
			Expect(err).ToNot(HaveOccurred())
			Expect(rec.Store).To(Equal("ICA Maxi"))
			Expect(rec.Items).To(HaveLen(1))
		})
	})

	When("the date element is missing", func() {
		BeforeEach(func() {
			data = []byte(`<Receipt><Store>ICA</Store></Receipt>`)
		})

		It("should fall back to the current time", func() {
			Expect(err).ToNot(HaveOccurred())
			Expect(rec.Date).To(Equal(testNow))
		})
	})

	When("the store element is missing", func() {
		BeforeEach(func() {
			data = []byte(`<Receipt><Date>2024-03-01</Date></Receipt>`)
		})

		It("should fall back to the default store", func() {
			Expect(err).ToNot(HaveOccurred())
			Expect(rec.Store).To(Equal("ICA"))
		})
	})

	When("an item has a zero quantity", func() {
		BeforeEach(func() {
			data = []byte(`<Receipt>
				<Item>
					<Name>Mjölk</Name>
					<Price>15,00</Price>
					<Quantity>0</Quantity>
				</Item>
			</Receipt>`)
		})

		It("should default the quantity to one", func() {
			Expect(rec.Items).To(HaveLen(1))
			Expect(rec.Items[0].Quantity).To(Equal(1))
		})
	})

	When("an item has no name", func() {
		BeforeEach(func() {
			data = []byte(`<Receipt>
				<Item>
					<Price>15,00</Price>
				</Item>
				<Item>
					<Name>Bröd</Name>
					<Price>20,00</Price>
				</Item>
			</Receipt>`)
		})

		It("should skip the nameless item", func() {
			Expect(rec.Items).To(HaveLen(1))
			Expect(rec.Items[0].Name).To(Equal("Bröd"))
		})
	})

	When("an item price is malformed", func() {
		BeforeEach(func() {
			data = []byte(`<Receipt>
				<Item>
					<Name>Mjölk</Name>
					<Price>abc</Price>
				</Item>
			</Receipt>`)
		})

		It("should default the price to zero", func() {
			Expect(rec.Items).To(HaveLen(1))
			Expect(rec.Items[0].Price.IsZero()).To(BeTrue())
		})
	})

	When("the document is malformed", func() {
		BeforeEach(func() {
			data = []byte(`<Receipt><Unclosed>`)
		})

		It("should return an error", func() {
			Expect(err).To(HaveOccurred())
			Expect(rec).To(BeNil())
		})
	})
})
