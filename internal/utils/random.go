package utils

import (
	crand "crypto/rand"
	"fmt"
	"math/big"
	"math/rand"
	"strings"

	"github.com/mozillazg/go-pinyin"
	"github.com/sysu-ecnc-dev/info-admin/internal/domain"
)

var commonSurnames = []string{
	"王", "李", "张", "刘", "陈", "杨", "赵", "黄", "周", "吴",
	"徐", "孙", "胡", "朱", "高", "林", "何", "郭", "马", "罗",
}
var commonNameCharacters = []string{
	"伟", "强", "芳", "敏", "静", "丽", "刚", "杰", "娟", "勇",
	"艳", "涛", "明", "军", "磊", "洋", "勇", "霞", "飞", "玲",
	"超", "华", "平", "辉", "梅", "鑫", "龙", "鹏", "玉", "斌",
	"庆", "建", "丹", "彬", "凤", "旭", "宁", "乐", "成", "欣",
}

func GenerateRandomChineseName() string {
	surname := commonSurnames[rand.Intn(len(commonSurnames))]
	nameLength := rand.Intn(2) + 1
	name := ""

	for i := 0; i < nameLength; i++ {
		name += commonNameCharacters[rand.Intn(len(commonNameCharacters))]
	}
	return surname + name
}

const digits = "0123456789"

// GenerateEmailLocalPart 用姓名拼音的前缀加上几位数字作为邮箱前缀
func GenerateEmailLocalPart(chineseName string) string {
	pinyinArray := pinyin.LazyConvert(chineseName, nil)
	local := ""

	for _, py := range pinyinArray {
		length := rand.Intn(len(py)) + 1
		local += py[:length]
	}

	digitsLength := rand.Intn(3) + 1
	for i := 0; i < digitsLength; i++ {
		local += string(digits[rand.Intn(len(digits))])
	}

	return local
}

func GenerateRandomPhone() string {
	prefixes := []string{"130", "138", "150", "186", "199"}
	phone := prefixes[rand.Intn(len(prefixes))]
	for i := 0; i < 8; i++ {
		phone += string(digits[rand.Intn(len(digits))])
	}
	return phone
}

// GenerateRandomUser 生成一个随机用户，密码哈希由调用方填充
func GenerateRandomUser(emailDomainName string) *domain.User {
	name := GenerateRandomChineseName()
	status := domain.UserStatusActive
	if rand.Intn(5) == 0 {
		status = domain.UserStatusInactive
	}

	return &domain.User{
		Name:   name,
		Email:  GenerateEmailLocalPart(name) + "@" + emailDomainName,
		Phone:  GenerateRandomPhone(),
		Status: status,
		Role:   domain.RoleUser,
	}
}

// secureIntN 返回 [0, n) 内的随机数，密码和验证码会作为真实凭据发给用户，不能用可预测的伪随机数
func secureIntN(n int) int {
	v, err := crand.Int(crand.Reader, big.NewInt(int64(n)))
	if err != nil {
		// crypto/rand 读取失败说明系统随机源不可用，无法安全地继续
		panic(fmt.Sprintf("无法读取系统随机源: %v", err))
	}
	return int(v.Int64())
}

func GenerateRandomOTP() string {
	return fmt.Sprintf("%06d", secureIntN(1000000))
}

// PasswordCharset 是生成密码时使用的字符集
const PasswordCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*"

func GenerateRandomPassword(length int) string {
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		b.WriteByte(PasswordCharset[secureIntN(len(PasswordCharset))])
	}
	return b.String()
}

const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

func GenerateRandomID(letterLength int, digitLength int) string {
	id := make([]byte, letterLength+digitLength)
	for i := range id {
		if i < letterLength {
			id[i] = letters[rand.Intn(len(letters))]
		} else {
			id[i] = digits[rand.Intn(len(digits))]
		}
	}
	return string(id)
}

var bookmarkTitles = map[domain.BookmarkKind][]string{
	domain.BookmarkKindForm:    {"请假申请表", "报销单", "设备借用登记", "活动报名表", "满意度调查"},
	domain.BookmarkKindWebsite: {"学院官网", "教务系统", "图书馆", "校园邮箱", "信息门户"},
}

func GenerateRandomBookmark(kind domain.BookmarkKind) *domain.Bookmark {
	titles := bookmarkTitles[kind]
	return &domain.Bookmark{
		Kind:  kind,
		Title: titles[rand.Intn(len(titles))] + GenerateRandomID(0, 3),
		URL:   "https://example.com/" + strings.ToLower(GenerateRandomID(8, 0)),
	}
}

var uploadTitles = []string{"年度报告", "会议纪要", "规章制度", "培训材料", "通知公告"}

func GenerateRandomUploadTitle() string {
	return uploadTitles[rand.Intn(len(uploadTitles))] + GenerateRandomID(0, 4)
}
