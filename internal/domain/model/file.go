package model

// Статусы файловой записи. Переходы односторонние:
// pending -> done, pending -> fail. Из терминальных статусов выхода нет.
const (
	FileStatusPending = "pending"
	FileStatusDone    = "done"
	FileStatusFail    = "fail"
)

// ValidStatusTransition сообщает, допустим ли переход статуса файла.
func ValidStatusTransition(from, to string) bool {
	return from == FileStatusPending && (to == FileStatusDone || to == FileStatusFail)
}

// FilePart — физическая часть файла. Path — логический путь части
// (прямые слэши) относительно корня хранилища.
type FilePart struct {
	UID    string `bson:"uid" json:"uid"`
	Order  int    `bson:"order" json:"order"`
	Ext    string `bson:"ext" json:"ext"`
	Size   int64  `bson:"size" json:"size"`
	Length int64  `bson:"length,omitempty" json:"length,omitempty"`
	Path   string `bson:"path" json:"path"`
}

// FileData — полезная нагрузка файловой записи (системная таблица "files").
// Size — суммарный размер всех частей в байтах.
type FileData struct {
	Filename    string     `bson:"filename" json:"filename"`
	Ext         string     `bson:"ext,omitempty" json:"ext,omitempty"`
	Type        string     `bson:"type,omitempty" json:"type,omitempty"`
	Size        int64      `bson:"size" json:"size"`
	StorageID   string     `bson:"storage_id" json:"storage_id"`
	BucketID    string     `bson:"bucket_id" json:"bucket_id"`
	Parts       []FilePart `bson:"parts" json:"parts"`
	Path        string     `bson:"path,omitempty" json:"path,omitempty"`
	DownloadURL string     `bson:"downloadUrl,omitempty" json:"downloadUrl,omitempty"`
	Status      string     `bson:"status" json:"status"`
}
