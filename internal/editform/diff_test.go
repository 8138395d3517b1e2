package editform

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pitabwire/crmconsole/model"
)

func TestDiff(t *testing.T) {
	tests := []struct {
		name     string
		snapshot Values
		edits    Values
		want     model.Patch
	}{
		{
			name:     "only the changed enum",
			snapshot: Values{"status": "open", "priority": "low"},
			edits:    Values{"status": "open", "priority": "high"},
			want:     model.Patch{"priority": "high"},
		},
		{
			name:     "no edits",
			snapshot: Values{"status": "open", "priority": "low"},
			edits:    Values{},
			want:     model.Patch{},
		},
		{
			name:     "text compared trimmed",
			snapshot: Values{"internalNotes": "called back"},
			edits:    Values{"internalNotes": "  called back \n"},
			want:     model.Patch{},
		},
		{
			name:     "changed text is sent trimmed",
			snapshot: Values{"internalNotes": "called back"},
			edits:    Values{"internalNotes": " replaced part "},
			want:     model.Patch{"internalNotes": "replaced part"},
		},
		{
			name:     "blank text clears",
			snapshot: Values{"internalNotes": "old"},
			edits:    Values{"internalNotes": "   "},
			want:     model.Patch{"internalNotes": nil},
		},
		{
			name:     "blank enum is unchanged",
			snapshot: Values{"status": "open"},
			edits:    Values{"status": ""},
			want:     model.Patch{},
		},
		{
			name:     "enums are case sensitive",
			snapshot: Values{"status": "open"},
			edits:    Values{"status": "Open"},
			want:     model.Patch{"status": "Open"},
		},
		{
			name:     "blank ref unassigns",
			snapshot: Values{"assignedTo": "u1"},
			edits:    Values{"assignedTo": ""},
			want:     model.Patch{"assignedTo": nil},
		},
		{
			name:     "ref compared exactly",
			snapshot: Values{"assignedTo": "u1"},
			edits:    Values{"assignedTo": "u2"},
			want:     model.Patch{"assignedTo": "u2"},
		},
		{
			name:     "unknown fields are ignored",
			snapshot: Values{},
			edits:    Values{"subject": "new"},
			want:     model.Patch{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Diff(tt.snapshot, tt.edits, ComplaintFields))
		})
	}
}

func TestComplaintValues(t *testing.T) {
	v := ComplaintValues(&model.Complaint{
		Status:        model.ComplaintInProgress,
		Priority:      model.PriorityMedium,
		InternalNotes: "n",
		AssignedTo:    &model.UserRef{ID: "u7"},
	})
	assert.Equal(t, Values{"status": "in_progress", "priority": "medium", "internalNotes": "n", "assignedTo": "u7"}, v)
	assert.Equal(t, "", ComplaintValues(&model.Complaint{})["assignedTo"])
}

func TestLeadValues(t *testing.T) {
	v := LeadValues(&model.Lead{Name: "Ada", Phone: "1", Status: model.LeadNew, Source: model.SourceReferral})
	assert.Equal(t, "Ada", v["name"])
	assert.Equal(t, "referral", v["source"])
	assert.Len(t, v, len(LeadFields))
}
