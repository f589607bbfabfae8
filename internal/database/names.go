package database

import "strings"

// Служебные коллекции, создаваемые в каждой базе (первичной и арендаторской).
const (
	// DatabasesCollection — реестр арендаторских баз.
	DatabasesCollection = "database_records"
	// TablesCollection — реестр таблиц.
	TablesCollection = "tables_records"
)

// BuildDatabaseName строит имя физической базы арендатора:
// <первичная>_<uid>, дефисы uid заменяются на подчёркивания.
func BuildDatabaseName(primary, databaseID string) string {
	return primary + "_" + strings.ReplaceAll(databaseID, "-", "_")
}

// BuildTableName строит имя физической коллекции таблицы:
// table_<uid>, дефисы uid заменяются на подчёркивания.
func BuildTableName(tableID string) string {
	return "table_" + strings.ReplaceAll(tableID, "-", "_")
}
