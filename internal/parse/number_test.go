package parse

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

var _ = Describe("ParseDecimal", func() {
	var (
		input string
		d     decimal.Decimal
		err   error
	)

	JustBeforeEach(func() {
		d, err = ParseDecimal(input)
	})

	When("parsing a comma-separated decimal", func() {
		BeforeEach(func() {
			input = "15,90"
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should parse the exact value", func() {
			Expect(d.Equal(decimal.RequireFromString("15.90"))).To(BeTrue())
		})
	})

	When("parsing a point-separated decimal", func() {
		BeforeEach(func() {
			input = "10.50"
		})

		It("should parse the exact value", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Equal(decimal.RequireFromString("10.50"))).To(BeTrue())
		})
	})

	When("parsing a negative value", func() {
		BeforeEach(func() {
			input = "-5,00"
		})

		It("should keep the sign", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Equal(decimal.NewFromInt(-5))).To(BeTrue())
		})
	})

	When("parsing a value with surrounding whitespace", func() {
		BeforeEach(func() {
			input = " 7,25 "
		})

		It("should trim before parsing", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Equal(decimal.RequireFromString("7.25"))).To(BeTrue())
		})
	})

	When("parsing a non-numeric token", func() {
		BeforeEach(func() {
			input = "kvitto"
		})

		It("should return ErrNumericFormat", func() {
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, ErrNumericFormat)).To(BeTrue())
		})
	})

	When("parsing a token with multiple separators", func() {
		BeforeEach(func() {
			input = "1,2,3"
		})

		It("should return ErrNumericFormat", func() {
			Expect(errors.Is(err, ErrNumericFormat)).To(BeTrue())
		})
	})
})
