package model

import "testing"

func TestValidStatusTransition(t *testing.T) {
	tests := []struct {
		from string
		to   string
		want bool
	}{
		{FileStatusPending, FileStatusDone, true},
		{FileStatusPending, FileStatusFail, true},
		{FileStatusDone, FileStatusPending, false},
		{FileStatusDone, FileStatusFail, false},
		{FileStatusFail, FileStatusDone, false},
		{FileStatusPending, FileStatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			if got := ValidStatusTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("ValidStatusTransition(%q, %q) = %v, ожидали %v",
					tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestRecordName(t *testing.T) {
	rec := &Record{Data: map[string]any{"name": "storage"}}
	if rec.Name() != "storage" {
		t.Errorf("Name() = %q, ожидали 'storage'", rec.Name())
	}

	var nilRec *Record
	if nilRec.Name() != "" {
		t.Error("Name() на nil-записи должен возвращать пустую строку")
	}
	if (&Record{}).Name() != "" {
		t.Error("Name() без data должен возвращать пустую строку")
	}
}

func TestDataMapRoundTrip(t *testing.T) {
	in := FileData{
		Filename:  "report.pdf",
		Ext:       "pdf",
		Size:      1024,
		StorageID: "sid",
		BucketID:  "bid",
		Status:    FileStatusPending,
		Parts: []FilePart{
			{UID: "p1", Order: 1, Ext: "pdf", Size: 1024, Path: "storage/sid/buckets/bid/p1.pdf"},
		},
	}

	m, err := ToDataMap(in)
	if err != nil {
		t.Fatalf("ToDataMap() вернул ошибку: %v", err)
	}
	if m["storage_id"] != "sid" || m["bucket_id"] != "bid" {
		t.Errorf("ключи map не соответствуют bson-тегам: %v", m)
	}

	var out FileData
	if err := FromDataMap(m, &out); err != nil {
		t.Fatalf("FromDataMap() вернул ошибку: %v", err)
	}
	if out.Filename != in.Filename || out.Size != in.Size || out.Status != in.Status {
		t.Errorf("потеря атрибутов: %+v", out)
	}
	if len(out.Parts) != 1 || out.Parts[0].UID != "p1" || out.Parts[0].Order != 1 {
		t.Errorf("потеря частей: %+v", out.Parts)
	}
}
