package parse

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("extractStore", func() {
	var parser *Parser

	BeforeEach(func() {
		parser = newTestParser(nil)
	})

	When("the anchor line is present", func() {
		It("should return the following line", func() {
			lines := []string{"ICA Kvitto", "ICA Supermarket Hornstull", "Datum 2024-01-01"}
			Expect(parser.extractStore(lines)).To(Equal("ICA Supermarket Hornstull"))
		})
	})

	When("the anchor line is absent", func() {
		It("should return the default store", func() {
			lines := []string{"something", "else"}
			Expect(parser.extractStore(lines)).To(Equal("ICA"))
		})
	})

	When("the anchor is the last line", func() {
		It("should return the default store", func() {
			lines := []string{"something", "Kvitto"}
			Expect(parser.extractStore(lines)).To(Equal("ICA"))
		})
	})
})

var _ = Describe("extractDateAndNumber", func() {
	var (
		parser *Parser
		lines  []string
		date   time.Time
		number string
	)

	BeforeEach(func() {
		parser = newTestParser(nil)
	})

	JustBeforeEach(func() {
		date, number = parser.extractDateAndNumber(lines)
	})

	When("the date token is on the marker line", func() {
		BeforeEach(func() {
			lines = []string{"Allegatan 21 Datum 2026-02-08", "14:30"}
		})

		It("should parse the date from the marker line", func() {
			Expect(date).To(Equal(time.Date(2026, 2, 8, 14, 30, 0, 0, time.UTC)))
		})
	})

	When("the next line has no time token", func() {
		BeforeEach(func() {
			lines = []string{"Datum 2026-02-08", "Kassa 3"}
		})

		It("should keep midnight as the time of day", func() {
			Expect(date).To(Equal(time.Date(2026, 2, 8, 0, 0, 0, 0, time.UTC)))
		})
	})

	When("the date sits six lines below the marker", func() {
		BeforeEach(func() {
			lines = []string{
				"Datum",
				"Kassa", "Kassör", "Org nr", "556000-0000", "Butik",
				"2024-02-08",
				"13:37",
			}
		})

		It("should parse the offset date and merge the time", func() {
			Expect(date).To(Equal(time.Date(2024, 2, 8, 13, 37, 0, 0, time.UTC)))
		})
	})

	When("both a same-line date and an offset date are present", func() {
		BeforeEach(func() {
			lines = []string{
				"Datum 2024-03-01",
				"Kassa", "Kassör", "Org nr", "556000-0000", "Butik",
				"2020-01-01",
			}
		})

		It("should prefer the same-line date", func() {
			Expect(date.Year()).To(Equal(2024))
		})
	})

	When("no date marker exists", func() {
		BeforeEach(func() {
			lines = []string{"no dates here"}
		})

		It("should fall back to the current time", func() {
			Expect(date).To(Equal(testNow))
		})
	})

	When("the receipt number follows its label on the same line", func() {
		BeforeEach(func() {
			lines = []string{"Kvitto nr 4142"}
		})

		It("should extract the digit run", func() {
			Expect(number).To(Equal("4142"))
		})
	})

	When("the receipt number sits three lines below its label", func() {
		BeforeEach(func() {
			lines = []string{"Kvitto nr", "Kassa", "3", "987654"}
		})

		It("should accept an all-digit line", func() {
			Expect(number).To(Equal("987654"))
		})
	})

	When("the offset line is not purely numeric", func() {
		BeforeEach(func() {
			lines = []string{"Kvitto nr", "Kassa", "3", "98a654"}
		})

		It("should leave the receipt number absent", func() {
			Expect(number).To(BeEmpty())
		})
	})

	When("no receipt number label exists", func() {
		BeforeEach(func() {
			lines = []string{"Datum 2024-03-01"}
		})

		It("should leave the receipt number absent", func() {
			Expect(number).To(BeEmpty())
		})
	})
})
