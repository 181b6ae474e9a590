package cmd

import (
	"context"

	"github.com/frahmantamala/innovation-portal/internal/core/events"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("sampleEvent", func() {
	It("should build typed events for known types", func() {
		eventSubmissionID, eventActorID, eventToStatus = "sub-1", "u-1", "CONVERTED"

		transitioned, ok := sampleEvent(events.EventTypeSubmissionTransitioned).(*events.SubmissionTransitionedEvent)
		Expect(ok).To(BeTrue())
		Expect(transitioned.SubmissionID).To(Equal("sub-1"))
		Expect(transitioned.ToStatus).To(Equal("CONVERTED"))

		_, ok = sampleEvent(events.EventTypeInitiativeCreated).(*events.InitiativeCreatedEvent)
		Expect(ok).To(BeTrue())

		Expect(sampleEvent("custom.ping").EventType()).To(Equal("custom.ping"))
	})

	It("should deliver the sample to a subscriber", func() {
		Expect(publishSampleEvent(context.Background(), "custom.ping")).To(Succeed())
	})
})
