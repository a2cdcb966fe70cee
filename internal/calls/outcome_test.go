package calls

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		summary string
		want    Outcome
	}{
		{"Customer booked an appointment for Friday", OutcomeBooked},
		{"Appointment confirmed for a haircut", OutcomeBooked},
		{"We are fully booked this week", OutcomeNoAvailability},
		{"No availability for the requested time.", OutcomeNoAvailability},
		{"There were no available slots", OutcomeNoAvailability},
		{"Caller asked about our hours and pricing", OutcomeInfoOnly},
		{"Customer wanted information on services", OutcomeInfoOnly},
		{"Agent was unable to answer and offered a transfer", OutcomeFallback},
		{"We couldn't help the caller", OutcomeFallback},
		{"Caller hung up", OutcomeHangup},
		{"", OutcomeHangup},
		{"   ", OutcomeHangup},
		{"Caller asked about hours, then BOOKED a fade", OutcomeBooked},
		{"Fully booked today but booked them for tomorrow", OutcomeBooked},
	}
	for _, tc := range cases {
		if got := Classify(tc.summary); got != tc.want {
			t.Fatalf("Classify(%q): expected %s, got %s", tc.summary, tc.want, got)
		}
	}
}

func TestClassify_IsDeterministic(t *testing.T) {
	s := "Caller asked about pricing and was transferred"
	first := Classify(s)
	for i := 0; i < 100; i++ {
		if Classify(s) != first {
			t.Fatalf("expected stable classification")
		}
	}
}
