package item

import (
	"context"
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/declutter/internal/scanning"
)

var _ = Describe("Service", func() {
	var (
		db      *mockDB
		scanner *mockScanner
		images  *mockImages
		now     time.Time
		service *Service
	)

	BeforeEach(func() {
		db = newMockDB()
		scanner = newMockScanner()
		images = &mockImages{}
		now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		service = NewServiceWithDeps(db, scanner, images, &fixedIDGenerator{id: "item-1"}, &fixedTimeSource{now: now})
	})

	Describe("Scan", func() {
		var (
			ctx  context.Context
			in   ScanInput
			item *Item
			err  error
		)

		BeforeEach(func() {
			ctx = context.Background()
			in = ScanInput{ImageURL: "https://x/1.jpg", Condition: scanning.ConditionGood}
		})

		JustBeforeEach(func() {
			item, err = service.Scan(ctx, "alice", in)
		})

		When("identification succeeds", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("saves the item for the caller", func() {
				Expect(db.items).To(HaveKey("item-1"))
				Expect(item.UserID).To(Equal("alice"))
				Expect(item.CreatedAt).To(Equal(now))
				Expect(item.UpdatedAt).To(Equal(now))
			})

			It("copies the identification onto the item", func() {
				Expect(item.PhotoURL).To(Equal("https://x/1.jpg"))
				Expect(item.IdentifiedName).To(Equal("cordless drill"))
				Expect(item.Condition).To(Equal(scanning.ConditionGood))
				Expect(item.Recommendation).To(Equal(scanning.RecommendSell))
				Expect(item.UserOverrideName).To(BeNil())
			})

			It("passes the request to the scanner", func() {
				Expect(scanner.lastReq).To(Equal(scanning.ScanRequest{ImageURL: "https://x/1.jpg", Condition: scanning.ConditionGood}))
			})
		})

		When("a manual name is sent to the automatic route", func() {
			BeforeEach(func() {
				in.ManualName = "cordless drill"
			})

			It("ignores it", func() {
				Expect(scanner.lastReq.ManualName).To(BeEmpty())
				Expect(item.UserOverrideName).To(BeNil())
			})
		})

		When("the input is invalid", func() {
			BeforeEach(func() {
				in = ScanInput{ImageURL: "ftp://x/1.jpg", Condition: "BROKEN"}
			})

			It("returns an invalid input error per field", func() {
				var scanErr *ScanError
				Expect(errors.As(err, &scanErr)).To(BeTrue())
				Expect(scanErr.Code).To(Equal(CodeInvalidInput))
				Expect(scanErr.Fields).To(HaveKeyWithValue("imageUrl", "imageUrl must be an http or https URL"))
				Expect(scanErr.Fields).To(HaveKey("condition"))
			})

			It("never invokes the scanner", func() {
				Expect(scanner.calls).To(BeZero())
			})
		})

		When("the image URL is missing", func() {
			BeforeEach(func() {
				in.ImageURL = "  "
			})

			It("reports the field as required", func() {
				var scanErr *ScanError
				Expect(errors.As(err, &scanErr)).To(BeTrue())
				Expect(scanErr.Fields).To(HaveKeyWithValue("imageUrl", "imageUrl is a required field"))
			})
		})

		When("the identification escalates", func() {
			BeforeEach(func() {
				scanner.outcome = scanning.Outcome{
					Kind:   scanning.OutcomeEscalated,
					Result: &scanning.IdentificationResult{IdentifiedName: "unknown item", Confidence: scanning.ConfidenceLow},
				}
			})

			It("returns a low confidence error with the partial result", func() {
				var scanErr *ScanError
				Expect(errors.As(err, &scanErr)).To(BeTrue())
				Expect(scanErr.Code).To(Equal(CodeLowConfidence))
				Expect(scanErr.Result.IdentifiedName).To(Equal("unknown item"))
			})

			It("does not save anything", func() {
				Expect(db.items).To(BeEmpty())
			})
		})

		When("the identification fails", func() {
			BeforeEach(func() {
				scanner.outcome = scanning.Outcome{Kind: scanning.OutcomeFailed, Err: errSetup}
			})

			It("returns a scan failure wrapping the cause", func() {
				var scanErr *ScanError
				Expect(errors.As(err, &scanErr)).To(BeTrue())
				Expect(scanErr.Code).To(Equal(CodeScanFailed))
				Expect(err).To(MatchError(errSetup))
				Expect(db.items).To(BeEmpty())
			})
		})

		When("the request is cancelled before saving", func() {
			BeforeEach(func() {
				var cancel context.CancelFunc
				ctx, cancel = context.WithCancel(context.Background())
				cancel()
			})

			It("does not save the item", func() {
				Expect(err).To(MatchError(context.Canceled))
				Expect(db.items).To(BeEmpty())
			})
		})

		When("saving fails", func() {
			BeforeEach(func() {
				db.saveErr = errSetup
			})

			It("returns the error", func() {
				Expect(err).To(MatchError(errSetup))
				Expect(err.Error()).To(ContainSubstring("saving item to database"))
			})
		})
	})

	Describe("ScanManual", func() {
		var (
			in   ScanInput
			item *Item
			err  error
		)

		BeforeEach(func() {
			in = ScanInput{ImageURL: "https://x/1.jpg", Condition: scanning.ConditionFair, ManualName: "  cordless drill "}
		})

		JustBeforeEach(func() {
			item, err = service.ScanManual(context.Background(), "alice", in)
		})

		It("records the trimmed manual name as the override", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(*item.UserOverrideName).To(Equal("cordless drill"))
		})

		It("passes the manual name to the scanner", func() {
			Expect(scanner.lastReq.ManualName).To(Equal("cordless drill"))
		})

		When("the manual name is blank", func() {
			BeforeEach(func() {
				in.ManualName = "   "
			})

			It("returns an invalid input error", func() {
				var scanErr *ScanError
				Expect(errors.As(err, &scanErr)).To(BeTrue())
				Expect(scanErr.Code).To(Equal(CodeInvalidInput))
				Expect(scanErr.Fields).To(HaveKey("manualName"))
				Expect(scanner.calls).To(BeZero())
			})
		})

		When("the manual name is too long", func() {
			BeforeEach(func() {
				in.ManualName = strings.Repeat("x", 201)
			})

			It("returns an invalid input error", func() {
				var scanErr *ScanError
				Expect(errors.As(err, &scanErr)).To(BeTrue())
				Expect(scanErr.Fields).To(HaveKey("manualName"))
			})
		})
	})

	Describe("GetItem", func() {
		BeforeEach(func() {
			db.items["item-1"] = &Item{ID: "item-1", UserID: "alice"}
		})

		It("returns the caller's item", func() {
			item, err := service.GetItem("alice", "item-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(item.ID).To(Equal("item-1"))
		})

		It("hides other callers' items", func() {
			_, err := service.GetItem("bob", "item-1")
			Expect(IsNotFound(err)).To(BeTrue())
		})

		It("reports missing items", func() {
			_, err := service.GetItem("alice", "nope")
			Expect(IsNotFound(err)).To(BeTrue())
		})
	})

	Describe("ListItems", func() {
		It("returns the caller's items", func() {
			db.items["a"] = &Item{ID: "a", UserID: "alice"}
			db.items["b"] = &Item{ID: "b", UserID: "bob"}
			items, err := service.ListItems("alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(1))
			Expect(items[0].ID).To(Equal("a"))
		})

		It("returns the error", func() {
			db.listErr = errSetup
			_, err := service.ListItems("alice")
			Expect(err).To(MatchError(errSetup))
		})
	})

	Describe("DeleteItem", func() {
		var err error

		BeforeEach(func() {
			db.items["item-1"] = &Item{ID: "item-1", UserID: "alice", ItemInput: ItemInput{PhotoURL: "https://x/1.jpg"}}
		})

		When("the item belongs to the caller", func() {
			JustBeforeEach(func() {
				err = service.DeleteItem("alice", "item-1")
			})

			It("removes the item and its photo", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(db.items).To(BeEmpty())
				Expect(images.removed).To(ConsistOf("https://x/1.jpg"))
				Expect(images.owners).To(ConsistOf("alice"))
			})

			When("the photo cannot be removed", func() {
				BeforeEach(func() {
					images.removeErr = errSetup
				})

				It("still removes the item", func() {
					Expect(err).NotTo(HaveOccurred())
					Expect(db.items).To(BeEmpty())
				})
			})
		})

		When("the item belongs to someone else", func() {
			It("leaves it alone", func() {
				err = service.DeleteItem("bob", "item-1")
				Expect(IsNotFound(err)).To(BeTrue())
				Expect(db.items).To(HaveKey("item-1"))
			})
		})
	})
})

var _ = Describe("NewItemInput", func() {
	It("maps every field verbatim", func() {
		low, high := 2000, 4000
		warning := "Contains a lithium battery."
		result := &scanning.IdentificationResult{
			IdentifiedName:     "cordless drill",
			Confidence:         scanning.ConfidenceHigh,
			Recommendation:     scanning.RecommendRecycle,
			Reasoning:          "r",
			EstimatedValueLow:  &low,
			EstimatedValueHigh: &high,
			Guidance:           "g",
			IsHazardous:        true,
			HazardWarning:      &warning,
		}
		input := NewItemInput(scanning.ScanRequest{ImageURL: "https://x/1.jpg", Condition: scanning.ConditionPoor}, result)
		Expect(input).To(Equal(ItemInput{
			PhotoURL:           "https://x/1.jpg",
			IdentifiedName:     "cordless drill",
			Condition:          scanning.ConditionPoor,
			Recommendation:     scanning.RecommendRecycle,
			Reasoning:          "r",
			EstimatedValueLow:  &low,
			EstimatedValueHigh: &high,
			Guidance:           "g",
			IsHazardous:        true,
			HazardWarning:      &warning,
		}))
	})
})
