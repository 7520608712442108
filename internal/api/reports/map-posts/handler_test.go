// internal/api/reports/map-posts/handler_test.go
package mapposts

import (
	"context"
	"testing"
	"time"

	"kalikascan-admin/internal/common/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func postRows(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "title", "body", "plant_name", "latitude", "longitude", "flagged", "created_at"}).
		AddRow("post-001", "user-001", "Oak sighting", "Large oak near the river", "Oak", 27.7, 85.3, false, now).
		AddRow("post-002", "user-002", "Strange spots", nil, nil, 27.8, 85.4, true, now)
}

func TestHandler_Execute_ListPosts(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	now := time.Now()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM map_posts`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(`SELECT id, user_id, title, body, plant_name`).
		WithArgs(50, 0).
		WillReturnRows(postRows(now))

	handler := NewHandler(LoadConfig(), db, logger.NewNoOpLogger(), nil)

	output, err := handler.Execute(context.Background(), &Input{Limit: 50})

	assert.NoError(t, err)
	assert.Equal(t, 2, output.Total)
	assert.Len(t, output.Posts, 2)
	assert.Equal(t, "Oak sighting", output.Posts[0].Title)
	assert.Equal(t, "", output.Posts[1].Body)
	assert.True(t, output.Posts[1].Flagged)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_FlaggedOnly(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	now := time.Now()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM map_posts WHERE flagged = TRUE`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`FROM map_posts WHERE flagged = TRUE`).
		WithArgs(50, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "title", "body", "plant_name", "latitude", "longitude", "flagged", "created_at"}).
			AddRow("post-002", "user-002", "Strange spots", nil, nil, 27.8, 85.4, true, now))

	handler := NewHandler(LoadConfig(), db, logger.NewNoOpLogger(), nil)

	output, err := handler.Execute(context.Background(), &Input{Limit: 50, FlaggedOnly: true})

	assert.NoError(t, err)
	assert.Equal(t, 1, output.Total)
	assert.Len(t, output.Posts, 1)
	assert.True(t, output.Posts[0].Flagged)

	assert.NoError(t, mock.ExpectationsWereMet())
}
