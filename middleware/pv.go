package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/blogstreak/models"
	"github.com/cppla/blogstreak/services"
	"github.com/cppla/blogstreak/utils"
)

// PostViewRecorder counts a view after a successful GET of a single post and
// refreshes the post's trending score. Mount it on the detail route only.
func PostViewRecorder(db *gorm.DB, trending *services.TrendingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Request.Method != http.MethodGet || c.Writer.Status() != http.StatusOK {
			return
		}
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil || id == 0 {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		// single statement so concurrent readers never lose a view
		res := db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).
			UpdateColumn("view_count", gorm.Expr("view_count + 1"))
		if res.Error != nil {
			if utils.Sugar != nil {
				utils.Sugar.Warnf("view count update failed post=%d err=%v", id, res.Error)
			}
			return
		}
		if trending != nil && res.RowsAffected > 0 {
			trending.RefreshQuietly(ctx, uint(id))
		}
	}
}
