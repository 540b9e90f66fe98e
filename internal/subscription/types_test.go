package subscription

import (
	"errors"
	"testing"

	"github.com/nerrad567/sep2-core/internal/resource"
)

func ptr(v int64) *int64 { return &v }

func TestCondition_InRange(t *testing.T) {
	tests := []struct {
		name string
		cond Condition
		in   []int64
		out  []int64
	}{
		{name: "unbounded", cond: Condition{}, in: []int64{-1 << 40, 0, 1 << 40}},
		{name: "lower only", cond: Condition{LowerThreshold: ptr(-10)}, in: []int64{-10, 0, 25}, out: []int64{-11, -15}},
		{name: "upper only", cond: Condition{UpperThreshold: ptr(20)}, in: []int64{-15, 20}, out: []int64{21, 25}},
		{name: "both inclusive", cond: Condition{LowerThreshold: ptr(5), UpperThreshold: ptr(5)}, in: []int64{5}, out: []int64{4, 6}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, v := range tt.in {
				if !tt.cond.InRange(v) {
					t.Errorf("InRange(%d) = false, want true", v)
				}
			}
			for _, v := range tt.out {
				if tt.cond.InRange(v) {
					t.Errorf("InRange(%d) = true, want false", v)
				}
			}
		})
	}
}

func TestSubscription_PageSize(t *testing.T) {
	tests := []struct {
		limit int
		want  int
	}{
		{0, 1},
		{-3, 1},
		{1, 1},
		{50, 50},
		{100, 100},
		{101, 100},
		{5000, 100},
	}

	for _, tt := range tests {
		if got := (Subscription{EntityLimit: tt.limit}).PageSize(100); got != tt.want {
			t.Errorf("PageSize() with limit %d = %d, want %d", tt.limit, got, tt.want)
		}
	}
}

func TestHref(t *testing.T) {
	if got := Href(Subscription{ID: 12}); got != "/edev/0/sub/12" {
		t.Errorf("Href() = %q, want /edev/0/sub/12", got)
	}
	if got := Href(Subscription{ID: 12, ScopedSiteID: ptr(4)}); got != "/edev/4/sub/12" {
		t.Errorf("Href() = %q, want /edev/4/sub/12", got)
	}
}

func TestSubscription_Validate(t *testing.T) {
	valid := func() Subscription {
		return Subscription{
			AggregatorID:    1,
			ResourceType:    resource.TypeReading,
			NotificationURI: "https://agg.example.com/notify",
			EntityLimit:     10,
			Conditions:      []Condition{{LowerThreshold: ptr(1), UpperThreshold: ptr(2)}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(s *Subscription)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Subscription) {}},
		{name: "zero entity limit is allowed", mutate: func(s *Subscription) { s.EntityLimit = 0 }},
		{name: "no aggregator", mutate: func(s *Subscription) { s.AggregatorID = 0 }, wantErr: true},
		{name: "bad resource type", mutate: func(s *Subscription) { s.ResourceType = 0 }, wantErr: true},
		{name: "relative uri", mutate: func(s *Subscription) { s.NotificationURI = "/notify" }, wantErr: true},
		{name: "non http uri", mutate: func(s *Subscription) { s.NotificationURI = "ftp://x/y" }, wantErr: true},
		{name: "negative limit", mutate: func(s *Subscription) { s.EntityLimit = -1 }, wantErr: true},
		{name: "unknown attribute", mutate: func(s *Subscription) { s.Conditions[0].Attribute = 9 }, wantErr: true},
		{name: "inverted range", mutate: func(s *Subscription) { s.Conditions[0].LowerThreshold = ptr(3) }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSubscription) {
					t.Errorf("Validate() error = %v, want ErrInvalidSubscription", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate() error = %v", err)
			}
		})
	}
}
