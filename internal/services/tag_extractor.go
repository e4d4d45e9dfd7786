// internal/services/tag_extractor.go
package services

import (
	"regexp"
	"strings"

	"github.com/Corphon/BoardroomMCP/internal/models"
)

// TagExtractorService 从用户消息中识别被 @标记 点名的角色
// 不带 @ 的消息一律视为未点名，交给后续路由策略处理
type TagExtractorService struct {
	mentionPattern *regexp.Regexp
}

// NewTagExtractorService 创建标记提取服务
func NewTagExtractorService() *TagExtractorService {
	return &TagExtractorService{
		mentionPattern: regexp.MustCompile(`@([\p{L}\p{N}_-]+)`),
	}
}

// ExtractMentions 返回消息中按首次出现顺序 @点名 的角色ID，已去重
// token 命中角色ID或名称的子串即算匹配（支持 @dev 这类缩写）；
// 无法识别的 @标记 被忽略，没有任何 @标记 时返回空
func (s *TagExtractorService) ExtractMentions(message string, personas []*models.Persona) []string {
	if message == "" || len(personas) == 0 {
		return nil
	}

	var result []string
	seen := make(map[string]bool)

	// FindAllStringSubmatchIndex 按出现位置升序返回，首次出现顺序天然保持
	for _, match := range s.mentionPattern.FindAllStringSubmatchIndex(message, -1) {
		token := strings.ToLower(message[match[2]:match[3]])
		for _, p := range personas {
			if strings.Contains(strings.ToLower(p.ID), token) || strings.Contains(strings.ToLower(p.Name), token) {
				if !seen[p.ID] {
					seen[p.ID] = true
					result = append(result, p.ID)
				}
				break
			}
		}
	}

	return result
}
